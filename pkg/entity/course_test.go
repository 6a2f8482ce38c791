package entity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/lms-tenant-cache/internal/testutil"
	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *cache.Store
	source     *testutil.Source
	courses    *entity.CourseCache
	users      *entity.UserCache
	categories *entity.CategoryCache
	dashboard  *entity.DashboardCache
}

func newFixture(t *testing.T, tenantID int64) *fixture {
	t.Helper()
	store, _ := testutil.NewMemoryStore()
	return newFixtureOn(store, tenantID)
}

func newFixtureOn(store *cache.Store, tenantID int64) *fixture {
	source := testutil.NewSource(tenantID)
	logger := zerolog.Nop()
	categories := entity.NewCategoryCache(store, source, logger)
	return &fixture{
		store:      store,
		source:     source,
		courses:    entity.NewCourseCache(store, source, categories, logger),
		users:      entity.NewUserCache(store, source, logger),
		categories: categories,
		dashboard:  entity.NewDashboardCache(store, source, logger),
	}
}

func (f *fixture) cached(key string) bool {
	_, ok := f.store.Get(context.Background(), key)
	return ok
}

func TestCourseCache_ByID_ReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	first, err := f.courses.ByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), first.ID)
	assert.Equal(t, 1, f.source.Calls("Course"))

	assert.Equal(t, "c42:course", f.courses.ByIDKey(42))
	assert.True(t, f.cached("c42:course"))
	ttl := f.store.TTLRemaining(ctx, "c42:course")
	assert.Greater(t, ttl, int64(cache.TTLShort.Seconds()))
	assert.LessOrEqual(t, ttl, int64(cache.TTLDefault.Seconds()))

	second, err := f.courses.ByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, f.source.Calls("Course"), "second read must be served from cache")
	assert.Equal(t, first, second)
}

func TestCourseCache_ByID_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	f.source.Missing(9)

	_, err := f.courses.ByID(ctx, 9)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.False(t, f.cached(f.courses.ByIDKey(9)))

	_, err = f.courses.ByID(ctx, 9)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, 2, f.source.Calls("Course"))
}

func TestCourseCache_LoaderErrorPropagates(t *testing.T) {
	f := newFixture(t, 3)
	dbDown := errors.New("database is down")
	f.source.Fail(dbDown)

	_, err := f.courses.Stats(context.Background(), 1)
	assert.Same(t, dbDown, err)
}

func TestCourseCache_BackendDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	backend := &testutil.DownBackend{}
	f := newFixtureOn(cache.NewStore(backend, testutil.StoreConfig(), zerolog.Nop()), 3)

	for i := 0; i < 2; i++ {
		view, err := f.courses.ByID(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), view.ID)
	}
	assert.Equal(t, 2, f.source.Calls("Course"))
	assert.Positive(t, backend.Calls())

	assert.NoError(t, f.courses.Warm(ctx, 42), "warm must not fail on an unavailable cache")
	assert.Error(t, f.courses.ClearEntity(ctx, 42, 3))
}

func TestCourseCache_PagesAreKeyedBySize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	p1, err := f.courses.PageForTenant(ctx, 3, 1, 10)
	require.NoError(t, err)
	p2, err := f.courses.PageForTenant(ctx, 3, 1, 25)
	require.NoError(t, err)
	assert.Len(t, p1.Items, 10)
	assert.Len(t, p2.Items, 25)
	assert.Equal(t, 2, f.source.Calls("CoursesForTenant"))

	_, err = f.courses.PageForTenant(ctx, 3, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.Calls("CoursesForTenant"))
}

func TestCourseCache_ClearEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	_, _ = f.courses.ByID(ctx, 7)
	_, _ = f.courses.Stats(ctx, 7)
	_, _ = f.courses.Students(ctx, 7)
	_, _ = f.courses.ByID(ctx, 8)
	_, _ = f.courses.PageForTenant(ctx, 3, 1, 10)
	_, _ = f.courses.PageForTenant(ctx, 3, 40, 100)
	_, _ = f.categories.WithCourseCounts(ctx, 3)
	_, _ = f.users.ByID(ctx, 5)

	require.NoError(t, f.courses.ClearEntity(ctx, 7, 3))

	for _, key := range []string{
		f.courses.ByIDKey(7),
		f.courses.StatsKey(7),
		f.courses.StudentsKey(7),
		f.courses.PageKey(3, 1, 10),
		f.courses.PageKey(3, 40, 100),
		f.categories.CountsKey(3),
	} {
		assert.False(t, f.cached(key), "%s should be cleared", key)
	}
	assert.True(t, f.cached(f.courses.ByIDKey(8)), "other course views survive")
	assert.True(t, f.cached(f.users.ByIDKey(5)), "user entries survive")
}

func TestCourseCache_ClearTenantIsScoped(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewMemoryStore()
	t3 := newFixtureOn(store, 3)
	t4 := newFixtureOn(store, 4)

	_, _ = t3.courses.PageForTenant(ctx, 3, 1, 10)
	_, _ = t4.courses.PageForTenant(ctx, 4, 1, 10)

	require.NoError(t, t3.courses.ClearTenant(ctx, 3))
	assert.False(t, t3.cached(t3.courses.PageKey(3, 1, 10)))
	assert.True(t, t4.cached(t4.courses.PageKey(4, 1, 10)))

	// Clearing an already empty tenant is a no-op.
	assert.NoError(t, t3.courses.ClearTenant(ctx, 3))
}

func TestCourseCache_PurgeTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	_, _ = f.courses.ByID(ctx, 7)
	_, _ = f.courses.ByID(ctx, 8)
	_, _ = f.courses.PageForTenant(ctx, 3, 2, 10)

	require.NoError(t, f.courses.PurgeTenant(ctx, 3))
	assert.False(t, f.cached(f.courses.ByIDKey(7)))
	assert.False(t, f.cached(f.courses.ByIDKey(8)))
	assert.False(t, f.cached(f.courses.PageKey(3, 2, 10)))
}

func TestCourseCache_Warm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	require.NoError(t, f.courses.Warm(ctx, 42))
	assert.True(t, f.cached(f.courses.ByIDKey(42)))
	assert.True(t, f.cached(f.courses.StatsKey(42)))

	f.source.Reset()
	_, err := f.courses.ByID(ctx, 42)
	require.NoError(t, err)
	_, err = f.courses.Stats(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, f.source.Calls("Course"))
	assert.Zero(t, f.source.Calls("CourseStats"))

	// Warm always reloads.
	require.NoError(t, f.courses.Warm(ctx, 42))
	assert.Equal(t, 1, f.source.Calls("Course"))

	f.source.Missing(43)
	assert.ErrorIs(t, f.courses.Warm(ctx, 43), entity.ErrNotFound)
}
