package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds runner configuration
type Config struct {
	// Workers is the number of items warmed in parallel.
	// Each warm runs a handful of queries, so keep this well below the
	// database connection pool size.
	Workers int
	// ItemTimeout bounds the warm-up of a single item
	ItemTimeout time.Duration
}

// DefaultConfig returns the default runner configuration
func DefaultConfig() Config {
	return Config{
		Workers:     8,
		ItemTimeout: 10 * time.Second,
	}
}

// Warmer recomputes and stores the cache entries of one entity.
// entity.CourseCache and entity.UserCache implement it.
type Warmer interface {
	Warm(ctx context.Context, id int64) error
}

// Result summarizes one run
type Result struct {
	Warmed    int     `json:"warmed"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// itemResult is the outcome of warming one id
type itemResult struct {
	id  int64
	err error
}

// Runner warms many entities with a bounded worker pool
type Runner struct {
	config Config
	logger zerolog.Logger
}

// NewRunner creates a new runner
func NewRunner(config Config, logger zerolog.Logger) *Runner {
	defaults := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = defaults.ItemTimeout
	}
	return &Runner{config: config, logger: logger}
}

// Run warms every id with warmer. A failing item is counted and skipped;
// the run never aborts on it. Cancelling ctx stops the remaining items,
// which are reported as failed.
func (r *Runner) Run(ctx context.Context, family string, warmer Warmer, ids []int64) Result {
	start := time.Now()
	logger := r.logger.With().Str("family", family).Logger()
	var result Result
	if len(ids) == 0 {
		return result
	}

	logger.Info().
		Int("items", len(ids)).
		Int("workers", r.config.Workers).
		Msg("Starting cache warm-up")

	queue := make(chan int64)
	results := make(chan itemResult, r.config.Workers)

	// Feed the queue until every id is handed out or ctx ends
	go func() {
		defer close(queue)
		for _, id := range ids {
			select {
			case queue <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	workers := r.config.Workers
	if workers > len(ids) {
		workers = len(ids)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, warmer, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	seen := make(map[int64]bool, len(ids))
	for res := range results {
		done++
		seen[res.id] = true
		if res.err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, res.id)
			WarmupItems.WithLabelValues(family, "failure").Inc()
			logger.Warn().Err(res.err).Int64("id", res.id).Msg("Warm-up failed")
		} else {
			result.Warmed++
			WarmupItems.WithLabelValues(family, "success").Inc()
		}

		// Progress logging every 50 items
		if done%50 == 0 {
			logger.Info().
				Int("done", done).
				Int("total", len(ids)).
				Float64("progress_pct", float64(done)/float64(len(ids))*100).
				Msg("Warm-up progress")
		}
	}

	// Items never handed out because ctx ended
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, id)
			WarmupItems.WithLabelValues(family, "failure").Inc()
		}
	}

	logger.Info().
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("Cache warm-up complete")
	return result
}

// worker warms ids from the queue
func (r *Runner) worker(ctx context.Context, warmer Warmer, queue <-chan int64, results chan<- itemResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for id := range queue {
		itemCtx, cancel := context.WithTimeout(ctx, r.config.ItemTimeout)
		err := warmer.Warm(itemCtx, id)
		cancel()

		results <- itemResult{id: id, err: err}
	}
}
