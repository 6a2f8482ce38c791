package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by entity family
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"family"}, // "course", "user", "dashboard", "category", "raw"
	)

	// CacheMisses tracks cache misses by entity family
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"family"},
	)

	// CacheErrors tracks degraded cache operations
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan", "ttl", "flush_tag", "flush_all", "decode", "encode"
	)

	// LoaderDuration tracks how long read-through loaders take on a miss
	LoaderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_cache_loader_duration_seconds",
			Help:    "Duration of loader calls on cache miss",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"family"},
	)

	// TagFlushedKeys tracks keys removed by tag flushes
	TagFlushedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_cache_tag_flushed_keys_total",
			Help: "Total number of keys removed by tag flushes",
		},
	)
)
