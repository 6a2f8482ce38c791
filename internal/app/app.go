// Package app wires the cache store, the entity caches and the invalidation
// manager into one unit for the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lms-tenant-cache/internal/config"
	"github.com/Sternrassler/lms-tenant-cache/internal/repository"
	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
	"github.com/Sternrassler/lms-tenant-cache/pkg/logging"
	"github.com/Sternrassler/lms-tenant-cache/pkg/manager"
	"github.com/Sternrassler/lms-tenant-cache/pkg/warmup"
)

// Source is the data store behind every entity cache.
type Source interface {
	entity.CourseSource
	entity.UserSource
	entity.CategorySource
	entity.DashboardSource
}

// App holds the wired cache: the store, one cache per entity family, the
// invalidation manager and the warm-up runner. Close releases what Open
// acquired.
type App struct {
	Store      *cache.Store
	Courses    *entity.CourseCache
	Users      *entity.UserCache
	Dashboard  *entity.DashboardCache
	Categories *entity.CategoryCache
	Manager    *manager.Manager
	Runner     *warmup.Runner
	Logger     zerolog.Logger

	closers []func() error
}

// New wires the caches over an existing store and source.
func New(store *cache.Store, source Source, runner *warmup.Runner, logger zerolog.Logger) *App {
	a := &App{Store: store, Runner: runner, Logger: logger}
	a.Categories = entity.NewCategoryCache(store, source, logger)
	a.Courses = entity.NewCourseCache(store, source, a.Categories, logger)
	a.Users = entity.NewUserCache(store, source, logger)
	a.Dashboard = entity.NewDashboardCache(store, source, logger)
	a.Manager = manager.New(store, a.Courses, a.Users, a.Dashboard, a.Categories, logging.NewLogger(logger, "manager"))
	return a
}

// Open builds the backend and the repository described by cfg. An
// unreachable Redis is logged and tolerated; the caches degrade to the data
// store until it returns. A database that cannot be opened is an error.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	var (
		backend cache.Backend
		closers []func() error
	)
	switch cfg.Backend {
	case "memory":
		backend = cache.NewMemoryBackend()
	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, cache degraded")
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		}
		backend = cache.NewRedisBackend(client)
		closers = append(closers, client.Close)
	}

	repo, err := repository.OpenWithRetry(ctx, cfg.Database.Driver, cfg.Database.DSN, repository.DefaultRetryConfig(), logging.NewLogger(logger, "repository"))
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, repo.Close)
	if err := repo.Migrate(ctx); err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("failed to prepare database: %w", err)
	}

	store := cache.NewStore(backend, cfg.StoreConfig(), logging.NewLogger(logger, "cache"))
	runner := warmup.NewRunner(cfg.RunnerConfig(), logging.NewLogger(logger, "warmup"))

	a := New(store, repo, runner, logger)
	a.closers = closers
	return a, nil
}

// Close releases the connections opened by Open.
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
