package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_search_requests_total",
		Help: "Total number of searches by response source",
	}, []string{"source"})
	SearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "placeapi_search_duration_ms",
		Help:    "Search duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placeapi_cache_hits_total",
		Help: "Total result cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placeapi_cache_misses_total",
		Help: "Total result cache misses",
	})
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "placeapi_cache_entries",
		Help: "Current number of result cache entries",
	})
	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placeapi_cache_evictions_total",
		Help: "Total entries evicted because the cache was full",
	})
	CacheExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placeapi_cache_expired_total",
		Help: "Total entries removed after TTL (lazy or sweep)",
	})
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_provider_requests_total",
		Help: "Total provider Query calls",
	}, []string{"provider"})
	ProviderSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_provider_success_total",
		Help: "Total provider Query calls with at least one result",
	}, []string{"provider"})
	ProviderEmptyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_provider_empty_total",
		Help: "Total provider Query calls that returned no results",
	}, []string{"provider"})
	ProviderFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_provider_fail_total",
		Help: "Total provider Query failures",
	}, []string{"provider"})
	ProviderSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_provider_skipped_total",
		Help: "Providers skipped by reason (disabled, rate_limited)",
	}, []string{"provider", "reason"})
	ProviderDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placeapi_provider_duration_ms",
		Help:    "Provider Query duration in milliseconds",
		Buckets: []float64{10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"provider"})
	InboundRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "placeapi_inbound_rate_limited_total",
		Help: "Total inbound requests rejected with 429",
	})
	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "placeapi_job_runs_total",
		Help: "Background job runs by status",
	}, []string{"job", "status"})
)

func init() {
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEntries)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(CacheExpiredTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderSuccessTotal)
	prometheus.MustRegister(ProviderEmptyTotal)
	prometheus.MustRegister(ProviderFailTotal)
	prometheus.MustRegister(ProviderSkippedTotal)
	prometheus.MustRegister(ProviderDurationMs)
	prometheus.MustRegister(InboundRateLimitedTotal)
	prometheus.MustRegister(JobRunsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
