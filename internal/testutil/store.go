package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// StoreConfig returns a store configuration for tests: namespace "test:" and
// no circuit breaker, so every backend call is observable.
func StoreConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Namespace = "test:"
	cfg.Breaker.Enabled = false
	return cfg
}

// NewMemoryStore returns a store over a fresh MemoryBackend.
func NewMemoryStore(opts ...cache.MemoryOption) (*cache.Store, *cache.MemoryBackend) {
	backend := cache.NewMemoryBackend(opts...)
	return cache.NewStore(backend, StoreConfig(), zerolog.Nop()), backend
}

// DownBackend is a cache backend that is never reachable.
type DownBackend struct {
	calls atomic.Int64
}

var _ cache.Backend = (*DownBackend)(nil)

// Calls returns how many operations were attempted.
func (b *DownBackend) Calls() int64 {
	return b.calls.Load()
}

func (b *DownBackend) fail(op string) error {
	b.calls.Add(1)
	return fmt.Errorf("%w: %s: connection refused", cache.ErrUnavailable, op)
}

func (b *DownBackend) Get(context.Context, string) ([]byte, error) { return nil, b.fail("get") }
func (b *DownBackend) Set(context.Context, string, []byte, time.Duration, []string) error {
	return b.fail("set")
}
func (b *DownBackend) Delete(context.Context, ...string) (int64, error) { return 0, b.fail("del") }
func (b *DownBackend) Scan(context.Context, string) ([]string, error)   { return nil, b.fail("scan") }
func (b *DownBackend) TTL(context.Context, string) (time.Duration, error) {
	return cache.KeyMissing, b.fail("ttl")
}
func (b *DownBackend) DeleteByTag(context.Context, string) (int64, error) {
	return 0, b.fail("deltag")
}
func (b *DownBackend) DeletePrefix(context.Context, string) (int64, error) {
	return 0, b.fail("delprefix")
}
func (b *DownBackend) Info(context.Context) (cache.ServerInfo, error) {
	return cache.ServerInfo{}, b.fail("info")
}
func (b *DownBackend) Ping(context.Context) error { return b.fail("ping") }

// FlakyBackend is a MemoryBackend with switchable faults. With PartialFlush
// set, tag flushes remove their keys but report ErrPartialFlush; with TTLDown
// set, TTL lookups fail as unavailable.
type FlakyBackend struct {
	*cache.MemoryBackend
	PartialFlush bool
	TTLDown      bool
}

var _ cache.Backend = (*FlakyBackend)(nil)

// NewFlakyStore returns a store over a FlakyBackend with no faults enabled.
func NewFlakyStore() (*cache.Store, *FlakyBackend) {
	backend := &FlakyBackend{MemoryBackend: cache.NewMemoryBackend()}
	return cache.NewStore(backend, StoreConfig(), zerolog.Nop()), backend
}

func (b *FlakyBackend) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	removed, err := b.MemoryBackend.DeleteByTag(ctx, tag)
	if err != nil || !b.PartialFlush {
		return removed, err
	}
	return removed, fmt.Errorf("%w: %s: 1 key not cleared", cache.ErrPartialFlush, tag)
}

func (b *FlakyBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	if b.TTLDown {
		return cache.KeyMissing, fmt.Errorf("%w: ttl: i/o timeout", cache.ErrUnavailable)
	}
	return b.MemoryBackend.TTL(ctx, key)
}
