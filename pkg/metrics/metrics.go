// Package metrics exposes the Prometheus metrics of the LMS cache.
// All metrics are defined in their respective packages (cache, manager,
// warmup, repository, api) and registered via promauto on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - lms_cache_hits_total{family} (Counter): Cache hits by entity family
//   - lms_cache_misses_total{family} (Counter): Cache misses by entity family
//   - lms_cache_errors_total{operation} (Counter): Degraded cache operations
//   - lms_cache_loader_duration_seconds{family} (Histogram): Loader duration on miss
//   - lms_cache_tag_flushed_keys_total (Counter): Keys removed by tag flushes
//
// Invalidation Metrics (pkg/manager):
//   - lms_cache_invalidations_total{scope} (Counter): Invalidation cascades by scope
//   - lms_cache_invalidation_failures_total{scope} (Counter): Failed cascade steps
//   - lms_cache_warmups_total{result} (Counter): Tenant warm-ups by result
//
// Batch Warm-up Metrics (pkg/warmup):
//   - lms_cache_warmup_items_total{family, result} (Counter): Entities warmed
//
// Database Metrics (internal/repository):
//   - lms_cache_db_connect_retries_total (Counter): Retried connection attempts
//   - lms_cache_db_connect_backoff_seconds (Histogram): Backoff before a retry
//
// Admin HTTP Metrics (internal/api):
//   - lms_cache_http_requests_total{method, route, status} (Counter)
//   - lms_cache_http_request_duration_seconds{method, route} (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per family
//   sum by (family) (rate(lms_cache_hits_total[5m])) /
//   (sum by (family) (rate(lms_cache_hits_total[5m])) + sum by (family) (rate(lms_cache_misses_total[5m])))
//
//   # Degraded backend
//   sum(rate(lms_cache_errors_total[5m])) > 0
//
//   # P95 loader latency
//   histogram_quantile(0.95, sum by (le, family) (rate(lms_cache_loader_duration_seconds_bucket[5m])))
//
//   # Failing invalidations
//   rate(lms_cache_invalidation_failures_total[5m])
