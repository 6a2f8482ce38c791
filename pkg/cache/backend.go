package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key is not in the backend.
	ErrNotFound = errors.New("cache key not found")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("cache backend unavailable")

	// ErrInvalidPattern indicates a malformed wildcard pattern.
	ErrInvalidPattern = errors.New("invalid key pattern")

	// ErrPartialFlush indicates a tag flush removed only some of its keys.
	ErrPartialFlush = errors.New("partial tag flush")
)

// Sentinel TTL values returned by Backend.TTL, matching Redis semantics.
const (
	// NoExpiry is returned for a key that exists without a TTL.
	NoExpiry time.Duration = -1

	// KeyMissing is returned for a key that does not exist.
	KeyMissing time.Duration = -2
)

// Backend is the external key-value store the cache runs on.
// Keys and tags handed to a Backend are already namespaced.
type Backend interface {
	// Get returns the raw value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, replacing any previous value and TTL, and
	// indexes the key under every tag.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error

	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Scan lists keys matching a glob pattern (* ? [...]).
	Scan(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime, NoExpiry or KeyMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// DeleteByTag removes every key indexed under tag and the index itself.
	DeleteByTag(ctx context.Context, tag string) (int64, error)

	// DeletePrefix removes every key, including tag indexes, starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	// Info reports server-side statistics.
	Info(ctx context.Context) (ServerInfo, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// ServerInfo is the backend's own view of its health and usage.
type ServerInfo struct {
	Backend          string `json:"backend"`
	Version          string `json:"version"`
	UsedMemory       string `json:"used_memory"`
	ConnectedClients int64  `json:"connected_clients"`
	Hits             int64  `json:"keyspace_hits"`
	Misses           int64  `json:"keyspace_misses"`
	TotalKeys        int64  `json:"total_keys"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

// HitRate returns hits as a percentage of all lookups, 0 when there were none.
func (i ServerInfo) HitRate() float64 {
	total := i.Hits + i.Misses
	if total == 0 {
		return 0
	}
	return float64(i.Hits) / float64(total) * 100
}
