package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 用来保证指标只注册一次。
	// Prometheus 的 registry 不允许重复注册同名指标，否则会直接 panic。
	once sync.Once

	// HTTPRequestsTotal：累计请求数（Counter）。
	//
	// labels：
	// - method：HTTP 方法
	// - route：路由模板（/api/v1/links/:code，不要用真实 path，否则 label 基数无限）
	// - status：HTTP 状态码字符串
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds：请求耗时分布（Histogram），用于算 P95/P99。
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPInflightRequests：当前正在处理中的请求数（Gauge）。
	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// ResolveTotal：短码解析结果，outcome = ok / not_found / expired / error。
	ResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_resolve_total",
			Help: "Short code resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	// CacheOperations：缓存命中情况，level = l1 / l2，result = hit / miss。
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_operations_total",
			Help: "Cache lookups by level and result.",
		},
		[]string{"level", "result"},
	)

	// CacheErrors：被吞掉的缓存错误（缓存故障不影响主流程，但必须可观测）。
	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_errors_total",
			Help: "Cache errors swallowed by the resolver, by operation.",
		},
		[]string{"op"},
	)

	SweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_sweep_deleted_total",
			Help: "Links deleted by the expiry sweeper.",
		},
	)

	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_sweep_failures_total",
			Help: "Per-record delete failures during sweeps.",
		},
	)
)

// Init 注册指标：只允许注册一次（否则 panic: duplicate metrics collector registration）
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			ResolveTotal,
			CacheOperations,
			CacheErrors,
			SweepDeleted,
			SweepFailures,
		)
	})
}
