// 包 ratelimit：对外部数据源的出站调用做滑动窗口准入
package ratelimit

import (
	"sync"
	"time"

	"place-api/internal/logger"
)

// Limit：单个数据源的配额（Window 内最多 Quota 次）
type Limit struct {
	Quota  int
	Window time.Duration
}

// 文档注释：滑动窗口准入门
// 背景：仅限制本进程对外调用，不保证对端配额；拒绝即跳过，不排队不等待。
// 约束：窗口内只记录被放行的时间戳；未注册的数据源一律放行。
type Gate struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string][]time.Time
	now     func() time.Time
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{limits: make(map[string]Limit), windows: make(map[string][]time.Time), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Register：登记（或替换）数据源配额；Quota<=0 或 Window<=0 视为不限流
func (g *Gate) Register(provider string, l Limit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.Quota <= 0 || l.Window <= 0 {
		delete(g.limits, provider)
		delete(g.windows, provider)
		return
	}
	g.limits[provider] = l
	g.windows[provider] = nil
	logger.L().Debug("ratelimit_register", "provider", provider, "quota", l.Quota, "window", l.Window.String())
}

// TryAdmit：windowStart = now - Window，丢弃 <= windowStart 的记录；未满额则记录 now 并放行
func (g *Gate) TryAdmit(provider string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limits[provider]
	if !ok {
		return true
	}
	now := g.now()
	w := prune(g.windows[provider], now.Add(-l.Window))
	if len(w) >= l.Quota {
		g.windows[provider] = w
		return false
	}
	g.windows[provider] = append(w, now)
	return true
}

// Remaining：当前窗口剩余可用次数；未注册返回 -1
func (g *Gate) Remaining(provider string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limits[provider]
	if !ok {
		return -1
	}
	now := g.now()
	w := prune(g.windows[provider], now.Add(-l.Window))
	g.windows[provider] = w
	return l.Quota - len(w)
}

// prune：时间戳按写入顺序单调，找到第一个晚于 start 的位置截断
func prune(w []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(w) && !w[i].After(start) {
		i++
	}
	if i == 0 {
		return w
	}
	return append(w[:0], w[i:]...)
}
