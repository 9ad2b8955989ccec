// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"place-api/internal/logger"
	"place-api/internal/place"
	"place-api/internal/providers"
	"place-api/internal/search"
	"place-api/internal/store"
)

// Searcher：路由依赖的查询能力
type Searcher interface {
	Search(ctx context.Context, query string, typ place.Type) search.Response
	Stats() search.Stats
	ResetStats()
	Providers() []providers.Status
	CacheSize() int
	ClearCache() int
}

// TotalsReader：可选的持久化累计统计
type TotalsReader interface {
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// searchResponse：对外返回结构
type searchResponse struct {
	Results []place.Result `json:"results"`
	Source  string         `json:"source"`
	Cached  bool           `json:"cached"`
	Count   int            `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statsResponse struct {
	search.Stats
	Persisted *store.Totals `json:"persisted,omitempty"`
}

type healthResponse struct {
	Status    string             `json:"status"`
	Providers []providers.Status `json:"providers"`
	CacheSize int                `json:"cacheSize"`
	Time      time.Time          `json:"time"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// 文档注释：构建 API 路由
// 约束：rec 与 totals 可为 nil；查询日志写入失败不影响响应。
func BuildRoutes(s Searcher, rec store.Recorder, totals TotalsReader) *http.ServeMux {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		qs := r.URL.Query()
		if !qs.Has("q") {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
			return
		}
		typ, ok := place.ParseType(qs.Get("type"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown type " + qs.Get("type")})
			return
		}
		q := qs.Get("q")
		resp := s.Search(r.Context(), q, typ)
		store.RecordQuietly(r.Context(), rec, store.Event{Query: q, Type: typ.Key(), Source: resp.Source, Cached: resp.Cached, Count: len(resp.Results)})
		writeJSON(w, http.StatusOK, searchResponse{Results: resp.Results, Source: resp.Source, Cached: resp.Cached, Count: len(resp.Results)})
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		out := statsResponse{Stats: s.Stats()}
		if totals != nil {
			if t, err := totals.GetTotals(r.Context()); err == nil {
				out.Persisted = t
			} else {
				logger.L().Warn("stats_totals_error", "err", err)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	apiMux.HandleFunc("/stats/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		s.ResetStats()
		w.WriteHeader(http.StatusNoContent)
	})

	apiMux.HandleFunc("/cache/clear", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"cleared": s.ClearCache()})
	})

	apiMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Providers: s.Providers(), CacheSize: s.CacheSize(), Time: time.Now().UTC()})
	})

	apiMux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("pong"))
	})

	return apiMux
}
