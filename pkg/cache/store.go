package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// tagInfix separates tag indexes from cache entries inside the namespace.
const tagInfix = "__tag:"

// Config holds Store configuration.
type Config struct {
	// Namespace prefixes every key and tag (default "lms:").
	Namespace string

	// OpTimeout bounds single-key operations so a slow backend cannot stall
	// a request (default 150ms).
	OpTimeout time.Duration

	// BulkTimeout bounds scans, tag flushes and namespace flushes (default 5s).
	BulkTimeout time.Duration

	// Coalesce runs concurrent loaders for the same missing key only once.
	Coalesce bool

	// LoadTimeout bounds a coalesced load. The load is shared by every
	// waiter, so it does not end when the first caller goes away
	// (default 30s).
	LoadTimeout time.Duration

	// Breaker configures the circuit breaker in front of the backend.
	Breaker BreakerConfig
}

// BreakerConfig configures the backend circuit breaker.
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state window for failure counts
	Timeout          time.Duration // open duration before half-open
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // requests needed before the ratio is evaluated
}

// DefaultConfig returns the production Store configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:   "lms:",
		OpTimeout:   150 * time.Millisecond,
		BulkTimeout: 5 * time.Second,
		Coalesce:    false,
		LoadTimeout: 30 * time.Second,
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      10,
		},
	}
}

// Store is the cache facade used by entity caches. Backend failures never
// reach callers: reads degrade to misses and writes to false.
type Store struct {
	backend     Backend
	namespace   string
	opTimeout   time.Duration
	bulkTimeout time.Duration
	coalesce    bool
	loadTimeout time.Duration
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	logger      zerolog.Logger
}

// NewStore creates a Store on backend.
func NewStore(backend Backend, cfg Config, logger zerolog.Logger) *Store {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	defaults := DefaultConfig()
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}
	if cfg.BulkTimeout <= 0 {
		cfg.BulkTimeout = defaults.BulkTimeout
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaults.LoadTimeout
	}

	s := &Store{
		backend:     backend,
		namespace:   cfg.Namespace,
		opTimeout:   cfg.OpTimeout,
		bulkTimeout: cfg.BulkTimeout,
		coalesce:    cfg.Coalesce,
		loadTimeout: cfg.LoadTimeout,
		logger:      logger,
	}
	if cfg.Breaker.Enabled {
		s.breaker = newBreaker(cfg.Breaker, logger)
	}
	return s
}

func newBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isCallerGone(err) ||
				errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidPattern)
		},
	})
}

// Namespace returns the key prefix of this store.
func (s *Store) Namespace() string {
	return s.namespace
}

// Get returns the raw value stored under key. Any backend failure is
// reported as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	return s.get(ctx, key, "raw")
}

func (s *Store) get(ctx context.Context, key, family string) ([]byte, bool) {
	var data []byte
	err := s.call(ctx, s.opTimeout, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, s.key(key))
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			CacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		}
		CacheMisses.WithLabelValues(family).Inc()
		s.logger.Debug().Str("key", key).Str("family", family).Msg("Cache miss")
		return nil, false
	}

	CacheHits.WithLabelValues(family).Inc()
	s.logger.Debug().Str("key", key).Str("family", family).Msg("Cache hit")
	return data, true
}

// Put stores value under key for ttl and indexes it under tags.
// Returns false if the value could not be stored.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) bool {
	namespaced := make([]string, 0, len(tags))
	for _, tag := range tags {
		namespaced = append(namespaced, s.tag(tag))
	}

	err := s.call(ctx, s.opTimeout, func(ctx context.Context) error {
		return s.backend.Set(ctx, s.key(key), value, ttl, namespaced)
	})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache put failed")
		return false
	}

	s.logger.Debug().Str("key", key).Dur("ttl", ttl).Strs("tags", tags).Msg("Cached value")
	return true
}

// Forget removes key. Returns true when the backend accepted the delete,
// whether or not the key existed.
func (s *Store) Forget(ctx context.Context, key string) bool {
	err := s.call(ctx, s.opTimeout, func(ctx context.Context) error {
		_, err := s.backend.Delete(ctx, s.key(key))
		return err
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache forget failed")
		return false
	}
	return true
}

// KeysMatching lists keys (without namespace) matching a glob pattern.
// A malformed pattern or an unavailable backend yields an empty list.
func (s *Store) KeysMatching(ctx context.Context, pattern string) []string {
	if _, err := glob.Compile(pattern); err != nil {
		s.logger.Warn().Err(err).Str("pattern", pattern).Msg("Invalid key pattern")
		return []string{}
	}

	var keys []string
	err := s.call(ctx, s.bulkTimeout, func(ctx context.Context) error {
		var err error
		keys, err = s.backend.Scan(ctx, escapeGlob(s.namespace)+pattern)
		return err
	})
	if err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		s.logger.Warn().Err(err).Str("pattern", pattern).Msg("Cache key scan failed")
		return []string{}
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimPrefix(k, s.namespace)
		if strings.HasPrefix(k, tagInfix) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// FlushTag removes every entry carrying tag. Partial failures are logged
// and returned; they are not retried.
func (s *Store) FlushTag(ctx context.Context, tag string) error {
	var removed int64
	err := s.call(ctx, s.bulkTimeout, func(ctx context.Context) error {
		var err error
		removed, err = s.backend.DeleteByTag(ctx, s.tag(tag))
		return err
	})
	TagFlushedKeys.Add(float64(removed))
	if err != nil {
		CacheErrors.WithLabelValues("flush_tag").Inc()
		s.logger.Warn().Err(err).Str("tag", tag).Int64("removed", removed).Msg("Cache tag flush failed")
		return err
	}

	s.logger.Debug().Str("tag", tag).Int64("removed", removed).Msg("Flushed cache tag")
	return nil
}

// FlushAll removes every entry and tag index in the namespace.
func (s *Store) FlushAll(ctx context.Context) error {
	var removed int64
	err := s.call(ctx, s.bulkTimeout, func(ctx context.Context) error {
		var err error
		removed, err = s.backend.DeletePrefix(ctx, s.namespace)
		return err
	})
	if err != nil {
		CacheErrors.WithLabelValues("flush_all").Inc()
		s.logger.Error().Err(err).Str("namespace", s.namespace).Msg("Cache flush failed")
		return err
	}

	s.logger.Warn().Str("namespace", s.namespace).Int64("removed", removed).Msg("Flushed entire cache namespace")
	return nil
}

// TTLRemaining returns the remaining lifetime of key in seconds, -1 when the
// key has no TTL and -2 when it is absent or the backend is unavailable.
func (s *Store) TTLRemaining(ctx context.Context, key string) int64 {
	ttl, err := s.TTL(ctx, key)
	if err != nil {
		return int64(KeyMissing)
	}
	return ttl
}

// TTL is TTLRemaining for callers that must tell an absent key from an
// unavailable backend. The error wraps ErrUnavailable.
func (s *Store) TTL(ctx context.Context, key string) (int64, error) {
	var ttl time.Duration
	err := s.call(ctx, s.opTimeout, func(ctx context.Context) error {
		var err error
		ttl, err = s.backend.TTL(ctx, s.key(key))
		return err
	})
	if err != nil {
		CacheErrors.WithLabelValues("ttl").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache ttl lookup failed")
		return int64(KeyMissing), err
	}

	switch ttl {
	case NoExpiry, KeyMissing:
		return int64(ttl), nil
	}
	return int64(ttl.Round(time.Second) / time.Second), nil
}

// Info returns backend statistics.
func (s *Store) Info(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := s.call(ctx, s.bulkTimeout, func(ctx context.Context) error {
		var err error
		info, err = s.backend.Info(ctx)
		return err
	})
	return info, err
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.call(ctx, s.opTimeout, s.backend.Ping)
}

// call runs fn with a deadline and through the circuit breaker. Failures
// caused by the caller's own context ending do not count against the
// backend.
func (s *Store) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.breaker == nil {
		return fn(opCtx)
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		err := fn(opCtx)
		if err != nil && ctx.Err() != nil {
			return nil, callerGone{err: err}
		}
		return nil, err
	})
	var gone callerGone
	if errors.As(err, &gone) {
		return gone.err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// callerGone marks a backend error that happened after the caller's context
// ended. The breaker counts it as a success.
type callerGone struct {
	err error
}

func (e callerGone) Error() string { return e.err.Error() }
func (e callerGone) Unwrap() error { return e.err }

func isCallerGone(err error) bool {
	var gone callerGone
	return errors.As(err, &gone)
}

func (s *Store) key(key string) string {
	return s.namespace + key
}

func (s *Store) tag(tag string) string {
	return s.namespace + tagInfix + tag
}
