package providers

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"place-api/internal/config"
	"place-api/internal/logger"
	"place-api/internal/ratelimit"
)

// 文档注释：数据源描述（能力 + 配额）
// 背景：回退顺序由描述列表的顺序决定，编排层只遍历列表，不关心具体数据源。
type Descriptor struct {
	Provider Provider
	Limit    ratelimit.Limit
}

// Status：/health 展示用
type Status struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Quota   int    `json:"quota,omitempty"`
	Window  string `json:"window,omitempty"`
	Host    string `json:"host,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// configured：HTTP 适配器暴露其不可变配置
type configured interface {
	Settings() Settings
}

// 文档注释：数据源注册表
// 约束：注册顺序即优先级，运行期不根据成功率重排；线程安全读写。
type Registry struct {
	mu sync.RWMutex
	ds []Descriptor
}

func NewRegistry(ds ...Descriptor) *Registry {
	r := &Registry{}
	for _, d := range ds {
		r.Register(d)
	}
	return r
}

// Register：追加到优先级末尾；同名数据源原位替换
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ds {
		if r.ds[i].Provider.Name() == d.Provider.Name() {
			r.ds[i] = d
			logger.L().Info("provider_replaced", "name", d.Provider.Name())
			return
		}
	}
	r.ds = append(r.ds, d)
	logger.L().Info("provider_registered", "name", d.Provider.Name(), "enabled", d.Provider.Enabled(), "priority", len(r.ds))
}

// Descriptors：按优先级返回副本
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Descriptor(nil), r.ds...)
}

func (r *Registry) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.ds))
	for _, d := range r.ds {
		s := Status{Name: d.Provider.Name(), Enabled: d.Provider.Enabled()}
		if d.Limit.Quota > 0 {
			s.Quota = d.Limit.Quota
			s.Window = d.Limit.Window.String()
		}
		if c, ok := d.Provider.(configured); ok {
			cfg := c.Settings()
			s.Timeout = cfg.Timeout.String()
			if u, err := url.Parse(cfg.BaseURL); err == nil {
				s.Host = u.Host
			}
		}
		out = append(out, s)
	}
	return out
}

// Apply：把各数据源配额登记到准入门
func (r *Registry) Apply(g *ratelimit.Gate) {
	for _, d := range r.Descriptors() {
		g.Register(d.Provider.Name(), d.Limit)
	}
}

// 文档注释：按配置构造默认回退链 Photon → Nominatim → LocationIQ
// 约束：client 为空时各适配器使用自带超时的客户端。
func Build(cfg config.Config, client *http.Client) *Registry {
	settings := func(pc config.ProviderConfig) Settings {
		return Settings{
			BaseURL:   pc.URL,
			APIKey:    pc.APIKey,
			UserAgent: pc.UserAgent,
			Lang:      cfg.Lang,
			Limit:     cfg.ResultLimit,
			Timeout:   cfg.ProviderTimeout,
			Enabled:   pc.Enabled,
		}
	}
	limit := func(pc config.ProviderConfig) ratelimit.Limit {
		w := pc.RateWindow
		if w <= 0 {
			w = time.Second
		}
		return ratelimit.Limit{Quota: pc.RateLimit, Window: w}
	}
	return NewRegistry(
		Descriptor{Provider: NewPhoton(settings(cfg.Photon), client), Limit: limit(cfg.Photon)},
		Descriptor{Provider: NewNominatim(settings(cfg.Nominatim), client), Limit: limit(cfg.Nominatim)},
		Descriptor{Provider: NewLocationIQ(settings(cfg.LocationIQ), client), Limit: limit(cfg.LocationIQ)},
	)
}
