package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Loader fetches the value behind a cache key from the source of truth.
type Loader[T any] func(ctx context.Context) (T, error)

// Typed is a read-through cache for one value type. Values are stored as JSON.
type Typed[T any] struct {
	store  *Store
	family string
}

// NewTyped creates a typed view over store. family labels metrics and logs.
func NewTyped[T any](store *Store, family string) *Typed[T] {
	return &Typed[T]{store: store, family: family}
}

// Get returns the cached value under key. A value that cannot be decoded is
// forgotten and reported as a miss.
func (c *Typed[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, ok := c.store.get(ctx, key, c.family)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		c.store.logger.Warn().Err(err).Str("key", key).Str("family", c.family).Msg("Undecodable cache entry, dropping")
		c.store.Forget(ctx, key)
		var zero T
		return zero, false
	}
	return value, true
}

// Put stores value under key.
func (c *Typed[T]) Put(ctx context.Context, key string, value T, ttl time.Duration, tags ...string) bool {
	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		c.store.logger.Warn().Err(err).Str("key", key).Str("family", c.family).Msg("Unencodable cache value, not cached")
		return false
	}
	return c.store.Put(ctx, key, data, ttl, tags...)
}

// Remember returns the cached value under key or, on a miss, runs loader,
// caches its result and returns it. Loader errors are returned unchanged and
// nothing is cached.
//
// Without coalescing, concurrent misses on one key may each run the loader.
// Loaders are read-only queries, so this costs load but not correctness.
func (c *Typed[T]) Remember(ctx context.Context, key string, ttl time.Duration, loader Loader[T], tags ...string) (T, error) {
	return c.RememberTagged(ctx, key, ttl, loader, func(T) []string { return tags })
}

// RememberTagged is Remember with tags derived from the loaded value, for
// entries whose tenant is only known after loading.
func (c *Typed[T]) RememberTagged(ctx context.Context, key string, ttl time.Duration, loader Loader[T], tagsFor func(T) []string) (T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	if !c.store.coalesce {
		return c.Refresh(ctx, key, ttl, loader, tagsFor)
	}

	// The shared load keeps the first caller's values but not its
	// cancellation; each waiter still honours its own ctx.
	ch := c.store.group.DoChan(c.store.key(key), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.store.loadTimeout)
		defer cancel()
		return c.Refresh(loadCtx, key, ttl, loader, tagsFor)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.store.logger.Debug().Str("key", key).Msg("Coalesced concurrent cache miss")
		}
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Refresh runs loader unconditionally and overwrites the cached value.
// Used for warm-up.
func (c *Typed[T]) Refresh(ctx context.Context, key string, ttl time.Duration, loader Loader[T], tagsFor func(T) []string) (T, error) {
	start := time.Now()
	value, err := loader(ctx)
	LoaderDuration.WithLabelValues(c.family).Observe(time.Since(start).Seconds())
	if err != nil {
		return value, err
	}

	var tags []string
	if tagsFor != nil {
		tags = tagsFor(value)
	}
	c.Put(ctx, key, value, ttl, tags...)
	return value, nil
}

// Remember is a one-off read-through on store for callers without a Typed cache.
func Remember[T any](ctx context.Context, store *Store, key string, ttl time.Duration, loader Loader[T], tags ...string) (T, error) {
	return NewTyped[T](store, "raw").Remember(ctx, key, ttl, loader, tags...)
}
