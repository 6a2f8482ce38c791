package manager

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
)

// Stats is the introspection record of the cache backend. When the backend
// cannot be queried only Error is set.
type Stats struct {
	Backend          string  `json:"backend,omitempty"`
	Version          string  `json:"version,omitempty"`
	UsedMemory       string  `json:"used_memory,omitempty"`
	ConnectedClients int64   `json:"connected_clients"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	TotalKeys        int64   `json:"total_keys"`
	UptimeSeconds    int64   `json:"uptime_seconds"`
	Error            string  `json:"error,omitempty"`
}

// GetCacheStats reads the backend's own statistics.
func (m *Manager) GetCacheStats(ctx context.Context) Stats {
	info, err := m.store.Info(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Cache stats unavailable")
		return Stats{Error: err.Error()}
	}
	return Stats{
		Backend:          info.Backend,
		Version:          info.Version,
		UsedMemory:       info.UsedMemory,
		ConnectedClients: info.ConnectedClients,
		Hits:             info.Hits,
		Misses:           info.Misses,
		HitRate:          info.HitRate(),
		TotalKeys:        info.TotalKeys,
		UptimeSeconds:    info.UptimeSeconds,
	}
}

// The raw operations below bypass the entity caches. Keys are not validated;
// they are for operators only.

// GetCacheKeysByPattern lists keys matching a glob pattern. A malformed
// pattern yields an empty list.
func (m *Manager) GetCacheKeysByPattern(ctx context.Context, pattern string) []string {
	return m.store.KeysMatching(ctx, pattern)
}

// GetCacheValue returns the raw value under key.
func (m *Manager) GetCacheValue(ctx context.Context, key string) (json.RawMessage, bool) {
	data, ok := m.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	return json.RawMessage(data), true
}

// SetCacheValue stores value under key. A non-positive ttl stores the value
// for cache.TTLVeryLong.
func (m *Manager) SetCacheValue(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = cache.TTLVeryLong
	}
	ok := m.store.Put(ctx, key, value, ttl)
	if ok {
		m.logger.Info().Str("key", key).Dur("ttl", ttl).Msg("Cache value set by admin")
	}
	return ok
}

// DeleteCacheKey removes key.
func (m *Manager) DeleteCacheKey(ctx context.Context, key string) bool {
	ok := m.store.Forget(ctx, key)
	if ok {
		m.logger.Info().Str("key", key).Msg("Cache key deleted by admin")
	}
	return ok
}

// FlushAll removes every entry in the cache namespace, for every tenant.
// Confirmation is the caller's concern.
func (m *Manager) FlushAll(ctx context.Context) error {
	return m.store.FlushAll(ctx)
}

// ExpiredSummary reports one ClearExpiredCache sweep.
type ExpiredSummary struct {
	Scanned    int `json:"scanned"`
	Expired    int `json:"expired"`     // keys that expired during the sweep
	WithoutTTL int `json:"without_ttl"` // keys found with no TTL
	Removed    int `json:"removed"`     // keys without TTL that were deleted
	// Unavailable counts keys whose TTL could not be read; they are left alone.
	Unavailable int `json:"unavailable"`
}

// ClearExpiredCache sweeps the namespace for keys without a TTL. Every cache
// write carries a TTL, so such keys are strays and are deleted. Expiry
// itself is left to the backend.
func (m *Manager) ClearExpiredCache(ctx context.Context) ExpiredSummary {
	var summary ExpiredSummary
	for _, key := range m.store.KeysMatching(ctx, "*") {
		summary.Scanned++
		ttl, err := m.store.TTL(ctx, key)
		if err != nil {
			summary.Unavailable++
			continue
		}
		switch ttl {
		case int64(cache.KeyMissing):
			summary.Expired++
		case int64(cache.NoExpiry):
			summary.WithoutTTL++
			if m.store.Forget(ctx, key) {
				summary.Removed++
			}
		}
	}

	m.logger.Info().
		Int("scanned", summary.Scanned).
		Int("expired", summary.Expired).
		Int("without_ttl", summary.WithoutTTL).
		Int("removed", summary.Removed).
		Int("unavailable", summary.Unavailable).
		Msg("Expired cache sweep finished")
	return summary
}
