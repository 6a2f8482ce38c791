package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/lms-tenant-cache/internal/app"
	"github.com/Sternrassler/lms-tenant-cache/internal/config"
	"github.com/Sternrassler/lms-tenant-cache/internal/testutil"
	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/Sternrassler/lms-tenant-cache/pkg/warmup"
)

type harness struct {
	app    *app.App
	source *testutil.Source
	opened int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	// Keep config discovery away from real files.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	store, _ := testutil.NewMemoryStore()
	source := testutil.NewSource(3)
	return &harness{
		app:    app.New(store, source, warmup.NewRunner(warmup.Config{Workers: 2}, zerolog.Nop()), zerolog.Nop()),
		source: source,
	}
}

func (h *harness) open(context.Context, *config.Config) (*app.App, error) {
	h.opened++
	return h.app, nil
}

func (h *harness) run(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out, &errOut, h.open)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) cached(key string) bool {
	_, ok := h.app.Store.Get(context.Background(), key)
	return ok
}

func TestClear_Tenant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.app.Dashboard.Stats(ctx, 3)
	require.True(t, h.app.Store.Put(ctx, "other", []byte(`1`), cache.TTLDefault))

	out, _, err := h.run("cache", "clear", "--tenant", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "tenant 3")
	assert.False(t, h.cached(h.app.Dashboard.StatsKey(3)))
	assert.True(t, h.cached("other"))
}

func TestClear_AllNeedsForce(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.app.Store.Put(context.Background(), "other", []byte(`1`), cache.TTLDefault))

	_, _, err := h.run("cache", "clear")
	assert.ErrorIs(t, err, errNeedForce)
	assert.Zero(t, h.opened, "nothing is opened before the confirmation check")
	assert.True(t, h.cached("other"))

	_, _, err = h.run("cache", "clear", "--force")
	require.NoError(t, err)
	assert.False(t, h.cached("other"))
}

func TestFlush(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.app.Store.Put(context.Background(), "other", []byte(`1`), cache.TTLDefault))

	_, _, err := h.run("cache", "flush")
	assert.ErrorIs(t, err, errNeedForce)

	out, _, err := h.run("cache", "flush", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Flushed")
	assert.False(t, h.cached("other"))
}

func TestWarm(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("cache", "warm", "--tenant", "3", "--courses", "7,8", "--users", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Warmed 2 course entries, 0 failed")
	assert.Contains(t, out, "Warmed 1 user entries, 0 failed")
	assert.True(t, h.cached(h.app.Dashboard.StatsKey(3)))
	assert.True(t, h.cached(h.app.Courses.ByIDKey(7)))
	assert.True(t, h.cached(h.app.Users.ByIDKey(5)))
}

func TestWarm_ReportsFailures(t *testing.T) {
	h := newHarness(t)
	h.source.Missing(8)

	out, _, err := h.run("cache", "warm", "--tenant", "3", "--courses", "7,8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 warm-ups failed")
	assert.Contains(t, out, "Warmed 1 course entries, 1 failed")
}

func TestWarm_RequiresTenant(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("cache", "warm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tenant")
}

func TestWarm_DashboardFailure(t *testing.T) {
	h := newHarness(t)
	h.source.Fail(errors.New("db down"))

	_, _, err := h.run("cache", "warm", "--tenant", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant 3")
}

func TestValueCommands(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("cache", "set", "flags", `{"beta":true}`, "--ttl", "10m")
	require.NoError(t, err)
	assert.Equal(t, int64(600), h.app.Store.TTLRemaining(context.Background(), "flags"))

	out, _, err := h.run("cache", "get", "flags")
	require.NoError(t, err)
	assert.JSONEq(t, `{"beta":true}`, out)

	out, errOut, err := h.run("cache", "keys", "fl*")
	require.NoError(t, err)
	assert.Equal(t, "flags\n", out)
	assert.Contains(t, errOut, "1 keys")

	_, _, err = h.run("cache", "delete", "flags")
	require.NoError(t, err)

	_, _, err = h.run("cache", "get", "flags")
	assert.Error(t, err)
}

func TestSet_RejectsInvalidJSON(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("cache", "set", "k", "{not json")
	require.Error(t, err)
	assert.Zero(t, h.opened)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run("cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "memory")
	assert.Contains(t, out, "Hit rate:")
}

func TestExpired(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.app.Store.Put(context.Background(), "stray", []byte(`1`), 0))

	out, _, err := h.run("cache", "expired")
	require.NoError(t, err)
	assert.Contains(t, out, "1 removed")
	assert.False(t, h.cached("stray"))
}

func TestConfigErrorStopsCommand(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("--config", "/does/not/exist.yaml", "cache", "stats")
	require.Error(t, err)
	assert.Zero(t, h.opened)
}
