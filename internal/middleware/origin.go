package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"place-api/internal/config"
	"place-api/internal/logger"
)

// 文档注释：源站白名单（单 IP + CIDR）
// 背景：部署在 CDN 或网关之后时，仅允许回源网段与调试 IP 直连源站，其余请求统一 403。
// 约束：
// 1) 支持 IPv4/IPv6 CIDR；
// 2) 来源 IP 以 RemoteAddr 为准；仅在配置 RealIPHeader 时取该头的首个有效 IP；
// 3) 白名单可在运行期追加（AddCIDRs），读写互斥。
type OriginGuard struct {
	mu           sync.RWMutex
	allowIPs     map[string]struct{}
	allowCIDRs   []*net.IPNet
	realIPHeader string
}

// NewOriginGuard：按配置构建；无法解析的条目忽略并记录
func NewOriginGuard(cfg config.OriginConfig) *OriginGuard {
	g := &OriginGuard{allowIPs: map[string]struct{}{}, realIPHeader: strings.TrimSpace(cfg.RealIPHeader)}
	l := logger.L()
	for _, s := range cfg.AllowIPs {
		if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil {
			g.allowIPs[ip.String()] = struct{}{}
		} else {
			l.Warn("origin_allow_ip_invalid", "value", s)
		}
	}
	if cfg.AllowLocal {
		g.allowIPs["127.0.0.1"] = struct{}{}
		g.allowIPs["::1"] = struct{}{}
	}
	g.AddCIDRs(cfg.AllowCIDRs...)
	return g
}

// AddCIDRs：合并并去重
func (g *OriginGuard) AddCIDRs(cidrs ...string) {
	var parsed []*net.IPNet
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(c); err == nil {
			parsed = append(parsed, n)
		} else {
			logger.L().Warn("origin_allow_cidr_invalid", "value", c)
		}
	}
	g.mu.Lock()
	g.allowCIDRs = mergeCIDRs(g.allowCIDRs, parsed)
	g.mu.Unlock()
}

func (g *OriginGuard) Allowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if _, ok := g.allowIPs[ip.String()]; ok {
		return true
	}
	for _, n := range g.allowCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (g *OriginGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := g.sourceIP(r)
		if g.Allowed(ip) {
			next.ServeHTTP(w, r)
			return
		}
		logger.L().Debug("origin_guard_block", "ip", ip.String())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})
}

func (g *OriginGuard) sourceIP(r *http.Request) net.IP {
	if g.realIPHeader != "" {
		if raw := r.Header.Get(g.realIPHeader); raw != "" {
			first := strings.TrimSpace(strings.Split(raw, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func mergeCIDRs(old, add []*net.IPNet) []*net.IPNet {
	seen := make(map[string]struct{}, len(old)+len(add))
	out := make([]*net.IPNet, 0, len(old)+len(add))
	for _, n := range append(old, add...) {
		k := n.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}

// WrapOrigin：未启用时原样返回
func WrapOrigin(cfg config.OriginConfig, next http.Handler) http.Handler {
	if !cfg.Enabled {
		return next
	}
	logger.L().Info("origin_guard_enabled", "ips", len(cfg.AllowIPs), "cidrs", len(cfg.AllowCIDRs))
	return NewOriginGuard(cfg).Middleware(next)
}
