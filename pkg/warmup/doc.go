// Package warmup warms the caches of many courses or users in parallel.
//
// Warm-up is triggered from the admin surface or a cron entry, never from
// the request path. A run distributes ids across a bounded worker pool,
// logs progress every 50 items and keeps going past failed items.
//
// Example usage:
//
//	runner := warmup.NewRunner(warmup.DefaultConfig(), logger)
//	result := runner.Run(ctx, "course", courseCache, []int64{1, 2, 3})
package warmup
