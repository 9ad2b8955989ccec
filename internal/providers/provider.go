// 包 providers：外部地理编码数据源适配层，把各家请求/响应差异吸收为统一的 place.Result
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"place-api/internal/place"
)

// 文档注释：数据源统一契约
// 约束：Query 仅返回 Name 非空的结果；传输/超时/非 2xx/解析失败返回 *ProviderError；
// Enabled 为 false 时编排层直接跳过，不调用也不计失败。
type Provider interface {
	Name() string
	Enabled() bool
	Query(ctx context.Context, text string, typ place.Type) ([]place.Result, error)
}

// ErrDisabled：直接调用被禁用的数据源时返回
var ErrDisabled = errors.New("provider disabled")

// ProviderError：单个数据源调用失败
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

const DefaultTimeout = 5 * time.Second

// 文档注释：数据源不可变配置
// 背景：构造时一次性传入，运行期不修改；密钥、标识头与超时都在这里。
type Settings struct {
	Name      string
	BaseURL   string
	APIKey    string
	UserAgent string
	Lang      string
	Limit     int
	Timeout   time.Duration
	Enabled   bool
}

func (s Settings) withDefaults(name, baseURL string) Settings {
	if s.Name == "" {
		s.Name = name
	}
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.Lang == "" {
		s.Lang = "en"
	}
	if s.Limit <= 0 {
		s.Limit = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	return s
}

// base：HTTP 适配器公共部分
type base struct {
	cfg    Settings
	client *http.Client
}

func newBase(cfg Settings, client *http.Client) base {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return base{cfg: cfg, client: client}
}

func (b *base) Name() string      { return b.cfg.Name }
func (b *base) Settings() Settings { return b.cfg }

func (b *base) disabledErr() error {
	return &ProviderError{Provider: b.cfg.Name, Op: "query", Err: ErrDisabled}
}

// toResults：逐条构造结果，丢弃名称为空的候选
func toResults(fs []place.Fields) []place.Result {
	out := make([]place.Result, 0, len(fs))
	for _, f := range fs {
		if r, ok := place.NewResult(f); ok {
			out = append(out, r)
		}
	}
	return out
}

// parseCoord：字符串坐标转为可选浮点，非法返回 nil
func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
