package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"place-api/internal/config"
	"place-api/internal/logger"
	"place-api/internal/metrics"
)

// 文档注释：入口按访客令牌桶限流
// 背景：保护本服务自身，与出站数据源准入无关；超限直接 429，不排队。
// 约束：访客键取自常见代理头；长时间不活跃的访客由 janitor 清理。
type VisitorLimiter struct {
	mu      sync.Mutex
	entries map[string]*visitor
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewVisitorLimiter(qps float64, burst int) *VisitorLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &VisitorLimiter{entries: make(map[string]*visitor), rps: rate.Limit(qps), burst: burst, idleTTL: 15 * time.Minute}
}

func (v *VisitorLimiter) Allow(key string) bool {
	now := time.Now()
	v.mu.Lock()
	e, ok := v.entries[key]
	if !ok {
		e = &visitor{lim: rate.NewLimiter(v.rps, v.burst)}
		v.entries[key] = e
	}
	e.lastSeen = now
	v.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Cleanup：移除空闲访客，返回移除数量
func (v *VisitorLimiter) Cleanup() int {
	cutoff := time.Now().Add(-v.idleTTL)
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for k, e := range v.entries {
		if e.lastSeen.Before(cutoff) {
			delete(v.entries, k)
			n++
		}
	}
	return n
}

// StartJanitor：每 every 清理一次，ctx 取消时退出
func (v *VisitorLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := v.Cleanup(); n > 0 {
					logger.L().Debug("visitor_limiter_cleanup", "removed", n)
				}
			}
		}
	}()
}

func (v *VisitorLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := VisitorIP(r)
		if !v.Allow(key) {
			metrics.InboundRateLimitedTotal.Inc()
			logger.L().Debug("inbound_rate_limited", "visitor", key)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(v.rps)))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 1
	}
	s := int(1 / float64(r))
	if s < 1 {
		return 1
	}
	return s
}

// 文档注释：包装入口处理器
// 约束：RATE_LIMIT_ENABLED 关闭时原样返回；ctx 控制 janitor 生命周期。
func Wrap(ctx context.Context, cfg config.InboundConfig, next http.Handler) http.Handler {
	if !cfg.Enabled {
		return next
	}
	v := NewVisitorLimiter(cfg.QPS, cfg.Burst)
	v.StartJanitor(ctx, 2*time.Minute)
	logger.L().Info("inbound_rate_limit_enabled", "qps", cfg.QPS, "burst", cfg.Burst)
	return v.Middleware(next)
}

// 文档注释：获取访问者 IP（用于限流键）
// 约束：依赖常见代理头顺序；部署于未经信任的代理链路需配合网关过滤。
func VisitorIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("cf-connecting-ip"); x != "" {
		return x
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	if x := h.Get("forwarded"); x != "" {
		i := strings.Index(strings.ToLower(x), "for=")
		if i >= 0 {
			y := x[i+4:]
			if p := strings.IndexByte(y, ';'); p >= 0 {
				y = y[:p]
			}
			if p := strings.IndexByte(y, ','); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\" ")
		}
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		return host[:i]
	}
	return host
}
