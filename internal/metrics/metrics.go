package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lookup metrics
	BatchRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteproxy_batch_requests_total",
			Help: "Batch price lookups served",
		})
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteproxy_cache_hits_total",
			Help: "Symbols served from the price cache",
		})
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteproxy_cache_misses_total",
			Help: "Symbols that required an upstream fetch",
		})

	// Upstream metrics
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteproxy_fetch_errors_total",
			Help: "Upstream fetch failures by source",
		}, []string{"source"})
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quoteproxy_fetch_latency_seconds",
			Help:    "Time to fetch one upstream quote or bulk payload",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"})

	// Refresh metrics
	RefreshCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteproxy_refresh_cycles_total",
			Help: "Completed full-refresh cycles",
		})
	RefreshSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteproxy_refresh_skipped_total",
			Help: "Refresh invocations skipped because a cycle was running",
		})
)
