// 包 cache：进程内地点结果缓存，按插入顺序淘汰并按 TTL 过期
package cache

import (
	"container/list"
	"sync"
	"time"

	"place-api/internal/logger"
	"place-api/internal/metrics"
	"place-api/internal/place"
)

const (
	DefaultMaxSize = 500
	DefaultTTL     = time.Hour
)

// 文档注释：结果缓存（键为归一化查询 + 类型）
// 约束：
// - 淘汰顺序只取决于插入顺序，读取不调整位置；覆盖写入刷新时间但保留原位置；
// - 读取时发现过期立即删除；Sweep 批量清理过期项；
// - 所有操作在同一互斥锁下进行，容量永不超过 maxSize；
// - 写入与读取都做深拷贝，调用方修改结果不影响缓存。
type ResultCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	lst     *list.List
	dict    map[string]*list.Element
	now     func() time.Time
}

type entry struct {
	key        string
	results    []place.Result
	insertedAt time.Time
}

type Option func(*ResultCache)

// WithClock：替换时间来源（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(maxSize int, ttl time.Duration, opts ...Option) *ResultCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &ResultCache{maxSize: maxSize, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *ResultCache) Get(key string) ([]place.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[key]
	if !ok {
		return nil, false
	}
	it := e.Value.(*entry)
	if c.expired(it) {
		c.remove(e)
		metrics.CacheExpiredTotal.Inc()
		logger.L().Debug("cache_expired_on_read", "key", key)
		return nil, false
	}
	return place.CloneResults(it.results), true
}

func (c *ResultCache) Put(key string, results []place.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.dict[key]; ok {
		it := e.Value.(*entry)
		it.results = place.CloneResults(results)
		it.insertedAt = now
		return
	}
	if c.lst.Len() >= c.maxSize {
		if front := c.lst.Front(); front != nil {
			logger.L().Debug("cache_evict", "key", front.Value.(*entry).key)
			c.remove(front)
			metrics.CacheEvictionsTotal.Inc()
		}
	}
	c.dict[key] = c.lst.PushBack(&entry{key: key, results: place.CloneResults(results), insertedAt: now})
	metrics.CacheEntries.Set(float64(c.lst.Len()))
}

// Sweep：清理全部过期项，返回清理数量
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for e := c.lst.Front(); e != nil; {
		next := e.Next()
		if c.expired(e.Value.(*entry)) {
			c.remove(e)
			n++
		}
		e = next
	}
	if n > 0 {
		metrics.CacheExpiredTotal.Add(float64(n))
	}
	return n
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lst.Init()
	c.dict = make(map[string]*list.Element)
	metrics.CacheEntries.Set(0)
}

func (c *ResultCache) expired(it *entry) bool {
	return c.now().Sub(it.insertedAt) > c.ttl
}

// remove：调用方需持有锁
func (c *ResultCache) remove(e *list.Element) {
	delete(c.dict, e.Value.(*entry).key)
	c.lst.Remove(e)
	metrics.CacheEntries.Set(float64(c.lst.Len()))
}
