package manager_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/internal/testutil"
	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/manager"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawValueOps(t *testing.T) {
	ctx := context.Background()
	m, _ := newRecordingManager(t)

	_, ok := m.GetCacheValue(ctx, "anything")
	assert.False(t, ok)

	require.True(t, m.SetCacheValue(ctx, "feature:flags", json.RawMessage(`{"beta":true}`), time.Minute))
	value, ok := m.GetCacheValue(ctx, "feature:flags")
	require.True(t, ok)
	assert.JSONEq(t, `{"beta":true}`, string(value))

	assert.Equal(t, []string{"feature:flags"}, m.GetCacheKeysByPattern(ctx, "feature:*"))
	assert.Empty(t, m.GetCacheKeysByPattern(ctx, "[feature"))

	assert.True(t, m.DeleteCacheKey(ctx, "feature:flags"))
	_, ok = m.GetCacheValue(ctx, "feature:flags")
	assert.False(t, ok)
	assert.True(t, m.DeleteCacheKey(ctx, "feature:flags"), "deleting an absent key succeeds")
}

func TestSetCacheValue_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewMemoryStore()
	s := newSystem(store, 3)

	require.True(t, s.manager.SetCacheValue(ctx, "k", json.RawMessage(`1`), 0))
	assert.Equal(t, int64(cache.TTLVeryLong.Seconds()), store.TTLRemaining(ctx, "k"))
}

func TestGetCacheStats(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewMemoryStore()
	s := newSystem(store, 3)

	_, _ = s.courses.ByID(ctx, 1)
	_, _ = s.courses.ByID(ctx, 1)

	stats := s.manager.GetCacheStats(ctx)
	assert.Empty(t, stats.Error)
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 50.0, stats.HitRate, 0.001)
	assert.Positive(t, stats.TotalKeys)
}

func TestGetCacheStats_BackendDown(t *testing.T) {
	store := cache.NewStore(&testutil.DownBackend{}, testutil.StoreConfig(), zerolog.Nop())
	m := newSystem(store, 3).manager

	stats := m.GetCacheStats(context.Background())
	assert.NotEmpty(t, stats.Error)
	assert.Zero(t, stats.TotalKeys)
}

func TestFlushAll(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.NewMemoryStore()
	s := newSystem(store, 3)

	_, _ = s.courses.ByID(ctx, 1)
	_, _ = s.users.ByID(ctx, 2)
	require.NoError(t, s.manager.FlushAll(ctx))
	assert.Empty(t, s.manager.GetCacheKeysByPattern(ctx, "*"))

	down := newSystem(cache.NewStore(&testutil.DownBackend{}, testutil.StoreConfig(), zerolog.Nop()), 3)
	assert.ErrorIs(t, down.manager.FlushAll(ctx), cache.ErrUnavailable)
}

func TestClearExpiredCache_RemovesStrays(t *testing.T) {
	ctx := context.Background()
	store, backend := testutil.NewMemoryStore()
	s := newSystem(store, 3)

	_, _ = s.courses.ByID(ctx, 1)
	_, _ = s.dashboard.Stats(ctx, 3)
	require.NoError(t, backend.Set(ctx, store.Namespace()+"legacy:key", []byte(`"x"`), 0, nil))
	require.NoError(t, backend.Set(ctx, "other:stray", []byte(`"y"`), 0, nil))

	summary := s.manager.ClearExpiredCache(ctx)
	assert.Equal(t, manager.ExpiredSummary{Scanned: 3, WithoutTTL: 1, Removed: 1}, summary)

	_, ok := s.manager.GetCacheValue(ctx, "legacy:key")
	assert.False(t, ok)
	assert.True(t, s.cached(s.courses.ByIDKey(1)))
	_, err := backend.Get(ctx, "other:stray")
	assert.NoError(t, err, "keys outside the namespace are not touched")

	assert.Equal(t, manager.ExpiredSummary{Scanned: 2}, s.manager.ClearExpiredCache(ctx))
}

func TestClearExpiredCache_BackendOutageIsNotExpiry(t *testing.T) {
	ctx := context.Background()
	store, backend := testutil.NewFlakyStore()
	s := newSystem(store, 3)

	_, _ = s.courses.ByID(ctx, 1)
	require.NoError(t, backend.Set(ctx, store.Namespace()+"legacy:key", []byte(`"x"`), 0, nil))
	backend.TTLDown = true

	summary := s.manager.ClearExpiredCache(ctx)
	assert.Equal(t, manager.ExpiredSummary{Scanned: 2, Unavailable: 2}, summary)
	assert.Zero(t, summary.Expired)

	_, ok := s.manager.GetCacheValue(ctx, "legacy:key")
	assert.True(t, ok, "keys are left alone while their TTL is unknown")
}
