package search

import (
	"sync"
	"time"
)

// Stats：进程级计数快照
type Stats struct {
	TotalRequests     int64            `json:"totalRequests"`
	CacheHits         int64            `json:"cacheHits"`
	CacheMisses       int64            `json:"cacheMisses"`
	ValidationRejects int64            `json:"validationRejects"`
	NoResults         int64            `json:"noResults"`
	Abandoned         int64            `json:"abandoned"`
	ProviderUsage     map[string]int64 `json:"providerUsage"`
	ProviderFailures  map[string]int64 `json:"providerFailures"`
	CacheSize         int              `json:"cacheSize"`
	StartedAt         time.Time        `json:"startedAt"`
}

// counters：互斥保护的计数器，读取返回深拷贝
type counters struct {
	mu sync.Mutex
	s  Stats
}

func newCounters(now time.Time) *counters {
	c := &counters{}
	c.resetLocked(now)
	return c
}

func (c *counters) resetLocked(now time.Time) {
	c.s = Stats{ProviderUsage: map[string]int64{}, ProviderFailures: map[string]int64{}, StartedAt: now}
}

func (c *counters) reset(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(now)
}

func (c *counters) update(fn func(s *Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.s)
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.s
	out.ProviderUsage = make(map[string]int64, len(c.s.ProviderUsage))
	for k, v := range c.s.ProviderUsage {
		out.ProviderUsage[k] = v
	}
	out.ProviderFailures = make(map[string]int64, len(c.s.ProviderFailures))
	for k, v := range c.s.ProviderFailures {
		out.ProviderFailures[k] = v
	}
	return out
}
