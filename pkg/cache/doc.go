// Package cache provides the tenant-scoped read-through cache used by the LMS
// services, with a Redis backend and an in-memory backend.
//
// The store implements the following features:
//
// - Deterministic key derivation scoped by tenant, user or course
// - Fixed TTL tiers (short, default, long, very long)
// - Tag-based bulk eviction (one tag per entity and per tenant family)
// - Graceful degradation: backend failures become misses, never errors
// - Short per-operation deadlines and a circuit breaker in front of the backend
// - Optional coalescing of concurrent misses on the same key
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create store
//	store := cache.NewStore(cache.NewRedisBackend(redisClient), cache.DefaultConfig(), logger)
//
//	// Read-through with a typed cache
//	courses := cache.NewTyped[CourseView](store, "course")
//	course, err := courses.Remember(ctx, cache.CourseKey("course", 42), cache.TTLDefault,
//		func(ctx context.Context) (CourseView, error) {
//			return db.Course(ctx, 42)
//		},
//		cache.EntityTag("course", 42),
//	)
//
// # Invalidation
//
//	// Drop one key
//	store.Forget(ctx, cache.CourseKey("stats", 42))
//
//	// Drop every page of a tenant's course listing
//	store.FlushTag(ctx, cache.TenantTag("courses", 3))
//
// # Failure Semantics
//
// Get on an unreachable backend is a miss and the loader runs; Put and Forget
// return false and log. Loader errors are returned unchanged: a failing data
// store is never reported as empty data. A malformed pattern passed to
// KeysMatching yields an empty list.
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - lms_cache_hits_total{family} - Cache hits
//   - lms_cache_misses_total{family} - Cache misses
//   - lms_cache_errors_total{operation} - Degraded cache operations
//   - lms_cache_loader_duration_seconds{family} - Loader latency on miss
//   - lms_cache_tag_flushed_keys_total - Keys removed by tag flushes
package cache
