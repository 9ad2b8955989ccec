// 包 search：地点自动补全编排（校验 → 缓存 → 按优先级逐个数据源 → 响应）
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"place-api/internal/cache"
	"place-api/internal/logger"
	"place-api/internal/metrics"
	"place-api/internal/place"
	"place-api/internal/providers"
	"place-api/internal/ratelimit"
)

const (
	SourceValidation = "validation"
	SourceCache      = "cache"
	SourceNone       = "none"

	MinQueryLen = 2
)

// Response：一次查询的对外结果；Results 永不为 nil
type Response struct {
	Results []place.Result `json:"results"`
	Source  string         `json:"source"`
	Cached  bool           `json:"cached"`
}

// 文档注释：查询编排器
// 背景：数据源按注册顺序串行尝试，首个非空结果胜出并写入缓存；不并发竞速，避免重复消耗付费或限流配额。
// 约束：
// - 编排器是错误边界，数据源失败只体现在统计与日志中，Search 永不返回错误；
// - 准入在调用前扣减，零结果调用同样占用窗口；
// - 优先级固定，不按历史成败调整；
// - 调用方 ctx 结束后不再尝试后续数据源，也不把由此导致的错误计为数据源失败。
type Orchestrator struct {
	reg   *providers.Registry
	gate  *ratelimit.Gate
	cache *cache.ResultCache
	stats *counters
	now   func() time.Time
}

func New(reg *providers.Registry, gate *ratelimit.Gate, c *cache.ResultCache) *Orchestrator {
	return &Orchestrator{reg: reg, gate: gate, cache: c, stats: newCounters(time.Now()), now: time.Now}
}

func (o *Orchestrator) Search(ctx context.Context, query string, typ place.Type) Response {
	t0 := o.now()
	rid := logger.RequestID(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	l := logger.L().With("rid", rid)
	resp := o.search(ctx, l, query, typ)
	metrics.SearchRequestsTotal.WithLabelValues(resp.Source).Inc()
	metrics.SearchDurationMs.Observe(float64(o.now().Sub(t0).Milliseconds()))
	return resp
}

func (o *Orchestrator) search(ctx context.Context, l *slog.Logger, query string, typ place.Type) Response {
	o.stats.update(func(s *Stats) { s.TotalRequests++ })

	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLen {
		o.stats.update(func(s *Stats) { s.ValidationRejects++ })
		l.Debug("search_validation_reject", "len", utf8.RuneCountInString(q))
		return Response{Results: []place.Result{}, Source: SourceValidation}
	}

	key := place.CacheKey(q, typ)
	if rs, ok := o.cache.Get(key); ok {
		o.stats.update(func(s *Stats) { s.CacheHits++ })
		metrics.CacheHitsTotal.Inc()
		l.Debug("search_cache_hit", "key", key, "count", len(rs))
		return Response{Results: rs, Source: SourceCache, Cached: true}
	}
	o.stats.update(func(s *Stats) { s.CacheMisses++ })
	metrics.CacheMissesTotal.Inc()

	for _, d := range o.reg.Descriptors() {
		if ctx.Err() != nil {
			return o.abandoned(l, ctx.Err())
		}
		p := d.Provider
		name := p.Name()
		if !p.Enabled() {
			metrics.ProviderSkippedTotal.WithLabelValues(name, "disabled").Inc()
			l.Debug("provider_skip_disabled", "provider", name)
			continue
		}
		if !o.gate.TryAdmit(name) {
			metrics.ProviderSkippedTotal.WithLabelValues(name, "rate_limited").Inc()
			l.Info("provider_skip_rate_limited", "provider", name)
			continue
		}
		pt := o.now()
		metrics.ProviderRequestsTotal.WithLabelValues(name).Inc()
		rs, err := p.Query(ctx, q, typ)
		metrics.ProviderDurationMs.WithLabelValues(name).Observe(float64(o.now().Sub(pt).Milliseconds()))
		if err != nil {
			if ctx.Err() != nil {
				return o.abandoned(l, ctx.Err())
			}
			o.stats.update(func(s *Stats) { s.ProviderFailures[name]++ })
			metrics.ProviderFailTotal.WithLabelValues(name).Inc()
			l.Warn("provider_query_error", "provider", name, "err", err)
			continue
		}
		if len(rs) == 0 {
			metrics.ProviderEmptyTotal.WithLabelValues(name).Inc()
			l.Debug("provider_query_empty", "provider", name)
			continue
		}
		o.stats.update(func(s *Stats) { s.ProviderUsage[name]++ })
		metrics.ProviderSuccessTotal.WithLabelValues(name).Inc()
		o.cache.Put(key, rs)
		l.Debug("search_provider_hit", "provider", name, "count", len(rs))
		return Response{Results: rs, Source: name}
	}

	o.stats.update(func(s *Stats) { s.NoResults++ })
	l.Info("search_no_results", "q", q, "type", typ.Key())
	return Response{Results: []place.Result{}, Source: SourceNone}
}

// abandoned：调用方已放弃（断开或超时），直接返回空结果
func (o *Orchestrator) abandoned(l *slog.Logger, cause error) Response {
	o.stats.update(func(s *Stats) { s.Abandoned++ })
	l.Debug("search_abandoned", "cause", cause)
	return Response{Results: []place.Result{}, Source: SourceNone}
}

// Stats：计数快照（含当前缓存条目数）
func (o *Orchestrator) Stats() Stats {
	s := o.stats.snapshot()
	s.CacheSize = o.cache.Len()
	return s
}

func (o *Orchestrator) ResetStats() {
	o.stats.reset(o.now())
	logger.L().Info("search_stats_reset")
}

// Providers：注册表状态（供健康检查）
func (o *Orchestrator) Providers() []providers.Status { return o.reg.Status() }

// ClearCache：清空结果缓存，返回清理前条目数
func (o *Orchestrator) ClearCache() int {
	n := o.cache.Len()
	o.cache.Clear()
	logger.L().Info("search_cache_cleared", "entries", n)
	return n
}

// CacheSize：当前缓存条目数
func (o *Orchestrator) CacheSize() int { return o.cache.Len() }
