package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// downBackend simulates an unreachable store.
type downBackend struct {
	calls atomic.Int64
}

func (b *downBackend) fail() error {
	b.calls.Add(1)
	return unavailable("test", context.DeadlineExceeded)
}

func (b *downBackend) Get(context.Context, string) ([]byte, error) { return nil, b.fail() }
func (b *downBackend) Set(context.Context, string, []byte, time.Duration, []string) error {
	return b.fail()
}
func (b *downBackend) Delete(context.Context, ...string) (int64, error) { return 0, b.fail() }
func (b *downBackend) Scan(context.Context, string) ([]string, error)   { return nil, b.fail() }
func (b *downBackend) TTL(context.Context, string) (time.Duration, error) {
	return KeyMissing, b.fail()
}
func (b *downBackend) DeleteByTag(context.Context, string) (int64, error)  { return 0, b.fail() }
func (b *downBackend) DeletePrefix(context.Context, string) (int64, error) { return 0, b.fail() }
func (b *downBackend) Info(context.Context) (ServerInfo, error)            { return ServerInfo{}, b.fail() }
func (b *downBackend) Ping(context.Context) error                          { return b.fail() }

// ctxBackend is a MemoryBackend whose Get honours ctx. beforeGet runs first
// and may cancel the caller mid-operation.
type ctxBackend struct {
	*MemoryBackend
	beforeGet func()
	calls     atomic.Int64
}

func (b *ctxBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.calls.Add(1)
	if b.beforeGet != nil {
		b.beforeGet()
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("get", err)
	}
	return b.MemoryBackend.Get(ctx, key)
}

// partialBackend reports every tag flush as incomplete.
type partialBackend struct {
	*MemoryBackend
}

func (b *partialBackend) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	removed, _ := b.MemoryBackend.DeleteByTag(ctx, tag)
	return removed, fmt.Errorf("%w: 1 of %d keys not cleared from %s", ErrPartialFlush, removed+1, tag)
}

// testConfig disables the breaker so failure tests observe every call.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Namespace = "test:"
	cfg.Breaker.Enabled = false
	return cfg
}

func newTestStore(backend Backend) *Store {
	return NewStore(backend, testConfig(), zerolog.Nop())
}
