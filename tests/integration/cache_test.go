//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/lms-tenant-cache/internal/app"
	"github.com/Sternrassler/lms-tenant-cache/internal/config"
	"github.com/Sternrassler/lms-tenant-cache/internal/testutil"
	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/warmup"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	return host + ":" + port.Port()
}

func newRedisStore(t *testing.T, addr string) *cache.Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewStore(cache.NewRedisBackend(client), testutil.StoreConfig(), zerolog.Nop())
}

func newApp(store *cache.Store, tenantID int64) (*app.App, *testutil.Source) {
	source := testutil.NewSource(tenantID)
	return app.New(store, source, warmup.NewRunner(warmup.DefaultConfig(), zerolog.Nop()), zerolog.Nop()), source
}

func TestReadThroughOnRedis(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, setupRedis(t))
	a, source := newApp(store, 3)

	first, err := a.Courses.ByID(ctx, 42)
	require.NoError(t, err)
	second, err := a.Courses.ByID(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.Calls("Course"))
	ttl := store.TTLRemaining(ctx, a.Courses.ByIDKey(42))
	assert.InDelta(t, cache.TTLDefault.Seconds(), float64(ttl), 2)
}

func TestCourseChangeLeavesUsersCached(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, setupRedis(t))
	a, _ := newApp(store, 3)

	_, _ = a.Courses.ByID(ctx, 7)
	_, _ = a.Courses.Stats(ctx, 7)
	_, _ = a.Dashboard.Stats(ctx, 3)
	_, _ = a.Users.ByID(ctx, 5)
	_, _ = a.Users.Progress(ctx, 5, 7)

	a.Manager.ClearCourseRelatedCache(ctx, 7, 3)

	cached := func(key string) bool {
		_, ok := store.Get(ctx, key)
		return ok
	}
	assert.False(t, cached(a.Courses.ByIDKey(7)))
	assert.False(t, cached(a.Courses.StatsKey(7)))
	assert.False(t, cached(a.Dashboard.StatsKey(3)))
	assert.True(t, cached(a.Users.ByIDKey(5)))
	assert.True(t, cached(a.Users.ProgressKey(5, 7)))
}

func TestTenantClearIsScoped(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, setupRedis(t))
	tenant3, _ := newApp(store, 3)
	tenant4, _ := newApp(store, 4)

	_, _ = tenant3.Courses.PageForTenant(ctx, 3, 1, 15)
	_, _ = tenant3.Dashboard.Stats(ctx, 3)
	_, _ = tenant4.Courses.PageForTenant(ctx, 4, 1, 15)
	_, _ = tenant4.Dashboard.Stats(ctx, 4)

	tenant3.Manager.ClearTenantCache(ctx, 3)
	tenant3.Manager.ClearTenantCache(ctx, 3)

	keys := store.KeysMatching(ctx, "*")
	assert.ElementsMatch(t, []string{tenant4.Courses.PageKey(4, 1, 15), tenant4.Dashboard.StatsKey(4)}, keys)
}

func TestWarmUpOnRedis(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, setupRedis(t))
	a, source := newApp(store, 3)

	require.True(t, a.Manager.WarmUpTenantCache(ctx, 3))
	res := a.Runner.Run(ctx, "course", a.Courses, []int64{1, 2, 3})
	assert.Equal(t, 3, res.Warmed)

	calls := source.Calls("DashboardStats")
	_, err := a.Dashboard.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, calls, source.Calls("DashboardStats"))
}

func TestAdminOpsOnRedis(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t, setupRedis(t))
	a, _ := newApp(store, 3)

	require.True(t, a.Manager.SetCacheValue(ctx, "feature:flags", json.RawMessage(`{"beta":true}`), time.Minute))
	value, ok := a.Manager.GetCacheValue(ctx, "feature:flags")
	require.True(t, ok)
	assert.JSONEq(t, `{"beta":true}`, string(value))
	assert.Equal(t, []string{"feature:flags"}, a.Manager.GetCacheKeysByPattern(ctx, "feature:*"))

	require.True(t, store.Put(ctx, "stray", []byte(`1`), 0))
	summary := a.Manager.ClearExpiredCache(ctx)
	assert.Equal(t, 1, summary.Removed)

	stats := a.Manager.GetCacheStats(ctx)
	assert.Empty(t, stats.Error)
	assert.Equal(t, "redis", stats.Backend)
	assert.NotEmpty(t, stats.Version)

	require.NoError(t, a.Manager.FlushAll(ctx))
	assert.Empty(t, a.Manager.GetCacheKeysByPattern(ctx, "*"))
}

func TestOpenFromConfig(t *testing.T) {
	ctx := context.Background()
	addr := setupRedis(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LMS_CACHE_REDIS_ADDR", addr)
	t.Setenv("LMS_CACHE_DATABASE_DSN", "file:integration?mode=memory&cache=shared")

	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := app.Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Ping(ctx))
	assert.True(t, a.Manager.WarmUpTenantCache(ctx, 1), "an empty tenant still warms")
	_, ok := a.Store.Get(ctx, a.Dashboard.StatsKey(1))
	assert.True(t, ok)
}
