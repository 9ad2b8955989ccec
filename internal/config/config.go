// 包 config：集中读取运行参数；来源依次为 YAML 文件（可选）、.env、进程环境变量，后者覆盖前者
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProviderConfig：单个外部数据源的开关、地址、凭据与配额
type ProviderConfig struct {
	Enabled    bool          `yaml:"enabled"`
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	UserAgent  string        `yaml:"user_agent"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type CacheConfig struct {
	MaxSize       int           `yaml:"max_size"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// InboundConfig：入口按访客限速
type InboundConfig struct {
	Enabled bool    `yaml:"enabled"`
	QPS     float64 `yaml:"qps"`
	Burst   int     `yaml:"burst"`
}

type SearchLogConfig struct {
	Postgres bool `yaml:"postgres"`
	Redis    bool `yaml:"redis"`
}

// OriginConfig：源站访问白名单（部署在 CDN/网关之后时使用）
type OriginConfig struct {
	Enabled      bool     `yaml:"enabled"`
	AllowIPs     []string `yaml:"allow_ips"`
	AllowCIDRs   []string `yaml:"allow_cidrs"`
	AllowLocal   bool     `yaml:"allow_local"`
	RealIPHeader string   `yaml:"real_ip_header"`
}

type KeepAliveConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	Addr            string          `yaml:"addr"`
	APIBase         string          `yaml:"api_base"`
	ProviderTimeout time.Duration   `yaml:"provider_timeout"`
	Lang            string          `yaml:"lang"`
	ResultLimit     int             `yaml:"result_limit"`
	Cache           CacheConfig     `yaml:"cache"`
	Photon          ProviderConfig  `yaml:"photon"`
	Nominatim       ProviderConfig  `yaml:"nominatim"`
	LocationIQ      ProviderConfig  `yaml:"locationiq"`
	Inbound         InboundConfig   `yaml:"inbound"`
	SearchLog       SearchLogConfig `yaml:"search_log"`
	Origin          OriginConfig    `yaml:"origin"`
	KeepAlive       KeepAliveConfig `yaml:"keepalive"`
}

// Default：未配置时的取值
func Default() Config {
	return Config{
		Addr:            ":8080",
		APIBase:         "/api",
		ProviderTimeout: 5 * time.Second,
		Lang:            "en",
		ResultLimit:     5,
		Cache:           CacheConfig{MaxSize: 500, TTL: time.Hour, SweepInterval: 10 * time.Minute},
		Photon:          ProviderConfig{Enabled: true, RateLimit: 60, RateWindow: time.Minute},
		Nominatim:       ProviderConfig{Enabled: true, UserAgent: "place-api/1.0", RateLimit: 1, RateWindow: time.Second},
		LocationIQ:      ProviderConfig{Enabled: true, RateLimit: 1, RateWindow: time.Second},
		Inbound:         InboundConfig{Enabled: false, QPS: 20, Burst: 40},
		KeepAlive:       KeepAliveConfig{Interval: 14 * time.Minute},
	}
}

// 文档注释：加载配置
// 背景：与既有部署习惯一致，先尝试加载工作目录与 data/env 下的 .env；CONFIG_FILE 指向的 YAML 作为基础值。
// 约束：环境变量解析失败时静默回退为已有值，不中断启动；YAML 读取或解析失败返回错误。
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	cfg := Default()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		if err := loadYAML(p, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Addr = envString("ADDR", c.Addr)
	c.APIBase = envString("API_BASE", c.APIBase)
	c.ProviderTimeout = envDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.Lang = envString("SEARCH_LANG", c.Lang)
	c.ResultLimit = envInt("RESULT_LIMIT", c.ResultLimit)

	c.Cache.MaxSize = envInt("CACHE_MAX_SIZE", c.Cache.MaxSize)
	c.Cache.TTL = envDuration("CACHE_TTL", c.Cache.TTL)
	c.Cache.SweepInterval = envDuration("CACHE_SWEEP_INTERVAL", c.Cache.SweepInterval)

	applyProviderEnv("PHOTON", &c.Photon)
	applyProviderEnv("NOMINATIM", &c.Nominatim)
	applyProviderEnv("LOCATIONIQ", &c.LocationIQ)

	c.Inbound.Enabled = envBool("RATE_LIMIT_ENABLED", c.Inbound.Enabled)
	c.Inbound.QPS = envFloat("RATE_LIMIT_QPS", c.Inbound.QPS)
	c.Inbound.Burst = envInt("RATE_LIMIT_BURST", c.Inbound.Burst)

	c.SearchLog.Postgres = envBool("SEARCH_LOG_POSTGRES", c.SearchLog.Postgres)
	c.SearchLog.Redis = envBool("SEARCH_LOG_REDIS", c.SearchLog.Redis)

	c.Origin.Enabled = envBool("ORIGIN_DEFENSE_ENABLE", c.Origin.Enabled)
	c.Origin.AllowIPs = envList("ORIGIN_ALLOW_IPS", c.Origin.AllowIPs)
	c.Origin.AllowCIDRs = envList("ORIGIN_ALLOW_CIDRS", c.Origin.AllowCIDRs)
	c.Origin.AllowLocal = envBool("ORIGIN_ALLOW_LOCAL", c.Origin.AllowLocal)
	c.Origin.RealIPHeader = envString("ORIGIN_REAL_IP_HEADER", c.Origin.RealIPHeader)

	c.KeepAlive.URL = envString("KEEPALIVE_URL", c.KeepAlive.URL)
	c.KeepAlive.Interval = envDuration("KEEPALIVE_INTERVAL", c.KeepAlive.Interval)
}

func applyProviderEnv(prefix string, p *ProviderConfig) {
	p.Enabled = envBool(prefix+"_ENABLED", p.Enabled)
	p.URL = envString(prefix+"_URL", p.URL)
	p.APIKey = envString(prefix+"_API_KEY", p.APIKey)
	p.UserAgent = envString(prefix+"_USER_AGENT", p.UserAgent)
	p.RateLimit = envInt(prefix+"_RATE_LIMIT", p.RateLimit)
	p.RateWindow = envDuration(prefix+"_RATE_WINDOW", p.RateWindow)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envList：逗号分隔，忽略空项
func envList(key string, def []string) []string {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f > 0 {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, e := time.ParseDuration(s); e == nil && d > 0 {
			return d
		}
	}
	return def
}
