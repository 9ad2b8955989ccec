package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"place-api/internal/logger"
)

// 文档注释：对外部数据源发起 GET 并解析 JSON
// 参数：
// - ctx：调用方上下文；此处再套一层 Settings.Timeout 的超时；
// - path/q：相对 BaseURL 的路径与查询参数；
// - out：响应体解码目标。
// 返回：任何传输、超时、非 2xx、解码失败均包装为 *ProviderError；非 2xx 时保留状态码供适配器判定。
func (b *base) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	u := b.cfg.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &ProviderError{Provider: b.cfg.Name, Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if b.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", b.cfg.UserAgent)
	}
	if b.cfg.Lang != "" {
		req.Header.Set("Accept-Language", b.cfg.Lang)
	}
	t0 := time.Now()
	logger.L().Debug("provider_req", "provider", b.cfg.Name, "path", path)
	resp, err := b.client.Do(req)
	if err != nil {
		logger.L().Warn("provider_http_error", "provider", b.cfg.Name, "err", err)
		return &ProviderError{Provider: b.cfg.Name, Op: "do", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &ProviderError{Provider: b.cfg.Name, Op: "status", StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.L().Warn("provider_decode_error", "provider", b.cfg.Name, "err", err)
		return &ProviderError{Provider: b.cfg.Name, Op: "decode", StatusCode: resp.StatusCode, Err: err}
	}
	logger.L().Debug("provider_resp", "provider", b.cfg.Name, "status", resp.StatusCode, "duration_ms", time.Since(t0).Milliseconds())
	return nil
}
