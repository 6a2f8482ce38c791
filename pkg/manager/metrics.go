package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Invalidations tracks invalidation cascades by scope
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_invalidations_total",
			Help: "Total number of cache invalidation cascades",
		},
		[]string{"scope"}, // "tenant", "course", "user", "progress", "purchase", "certificate", "category"
	)

	// InvalidationFailures tracks cascade steps that failed and were skipped
	InvalidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_invalidation_failures_total",
			Help: "Total number of failed invalidation cascade steps",
		},
		[]string{"scope"},
	)

	// Warmups tracks warm-up runs by result
	Warmups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_cache_warmups_total",
			Help: "Total number of cache warm-ups",
		},
		[]string{"result"}, // "success", "failure"
	)
)
