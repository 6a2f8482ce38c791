package cache

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// MemoryBackend is an in-process Backend. Expired entries are dropped lazily
// on access. There is no capacity limit.
type MemoryBackend struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	items   map[string]memoryItem
	tags    map[string]map[string]struct{}
	hits    int64
	misses  int64
}

type memoryItem struct {
	value    []byte
	expireAt time.Time // zero means no expiry
	tags     []string
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock replaces time.Now, mainly for TTL tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		b.now = now
	}
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		now:   time.Now,
		items: make(map[string]memoryItem),
		tags:  make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.started = b.now()
	return b
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, ok := b.live(key)
	if !ok {
		b.misses++
		return nil, ErrNotFound
	}
	b.hits++
	return append([]byte(nil), item.value...), nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Tag membership follows the latest write only.
	if old, ok := b.items[key]; ok {
		b.untag(key, old)
	}

	item := memoryItem{value: append([]byte(nil), value...), tags: append([]string(nil), tags...)}
	if ttl > 0 {
		item.expireAt = b.now().Add(ttl)
	}
	b.items[key] = item

	for _, tag := range tags {
		members, ok := b.tags[tag]
		if !ok {
			members = make(map[string]struct{})
			b.tags[tag] = members
		}
		members[key] = struct{}{}
	}
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, keys ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := b.live(key); ok {
			removed++
		}
		b.drop(key)
		delete(b.tags, key)
	}
	return removed, nil
}

// Scan implements Backend. Results are sorted.
func (b *MemoryBackend) Scan(_ context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for key := range b.items {
		if _, ok := b.live(key); ok && g.Match(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// TTL implements Backend.
func (b *MemoryBackend) TTL(_ context.Context, key string) (time.Duration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, ok := b.live(key)
	if !ok {
		return KeyMissing, nil
	}
	if item.expireAt.IsZero() {
		return NoExpiry, nil
	}
	return item.expireAt.Sub(b.now()), nil
}

// DeleteByTag implements Backend.
func (b *MemoryBackend) DeleteByTag(_ context.Context, tag string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	for key := range b.tags[tag] {
		if _, ok := b.live(key); ok {
			removed++
		}
		b.drop(key)
	}
	delete(b.tags, tag)
	return removed, nil
}

// DeletePrefix implements Backend.
func (b *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	for key := range b.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := b.live(key); ok {
			removed++
		}
		delete(b.items, key)
	}
	for tag := range b.tags {
		if strings.HasPrefix(tag, prefix) {
			delete(b.tags, tag)
		}
	}
	return removed, nil
}

// Info implements Backend.
func (b *MemoryBackend) Info(_ context.Context) (ServerInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		keys  int64
		bytes int
	)
	for key, item := range b.items {
		if _, ok := b.live(key); ok {
			keys++
			bytes += len(key) + len(item.value)
		}
	}

	return ServerInfo{
		Backend:          "memory",
		Version:          runtime.Version(),
		UsedMemory:       humanBytes(bytes),
		ConnectedClients: 1,
		Hits:             b.hits,
		Misses:           b.misses,
		TotalKeys:        keys,
		UptimeSeconds:    int64(b.now().Sub(b.started).Seconds()),
	}, nil
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// live returns the item under key, evicting it if it has expired.
// Callers hold b.mu.
func (b *MemoryBackend) live(key string) (memoryItem, bool) {
	item, ok := b.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expireAt.IsZero() && !b.now().Before(item.expireAt) {
		b.drop(key)
		return memoryItem{}, false
	}
	return item, true
}

// drop removes key and its tag memberships. Callers hold b.mu.
func (b *MemoryBackend) drop(key string) {
	if item, ok := b.items[key]; ok {
		b.untag(key, item)
		delete(b.items, key)
	}
}

// untag removes key from the tag sets of item, dropping sets left empty.
// Callers hold b.mu.
func (b *MemoryBackend) untag(key string, item memoryItem) {
	for _, tag := range item.tags {
		members, ok := b.tags[tag]
		if !ok {
			continue
		}
		delete(members, key)
		if len(members) == 0 {
			delete(b.tags, tag)
		}
	}
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%c", float64(n)/float64(div), "KMGT"[exp])
}
