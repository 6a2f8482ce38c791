package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrRetryExhausted is returned when every connection attempt failed.
	ErrRetryExhausted = errors.New("connection attempts exhausted")
)

var (
	connectRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_cache_db_connect_retries_total",
		Help: "Database connection attempts that were retried",
	})

	connectBackoff = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lms_cache_db_connect_backoff_seconds",
		Help:    "Backoff before a database connection retry",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// RetryConfig controls how often Open is retried at startup.
type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BackoffMultiplier grows the backoff after each failed attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig covers a database container that starts a few seconds
// after the cache service.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// OpenWithRetry calls Open until it succeeds, the attempts run out or ctx
// ends. An unsupported driver fails at once.
func OpenWithRetry(ctx context.Context, driver, dsn string, config RetryConfig, logger zerolog.Logger) (*Repository, error) {
	var repo *Repository
	err := retryWithBackoff(ctx, config, logger, func() error {
		r, err := Open(driver, dsn)
		if err != nil {
			return err
		}
		repo = r
		return nil
	})
	return repo, err
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedDriver)
}

// retryWithBackoff runs fn with exponential backoff and ±20% jitter.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Database connected after retry")
			}
			return nil
		}
		lastErr = err

		if isPermanent(err) || attempt >= config.MaxAttempts {
			break
		}

		connectRetries.Inc()
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		connectBackoff.Observe(jitter.Seconds())
		logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", jitter).Msg("Database connection failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("database connect: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if isPermanent(lastErr) {
		return lastErr
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
