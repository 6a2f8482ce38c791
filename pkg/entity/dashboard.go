package entity

import (
	"context"
	"strconv"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// Dashboard warm-up parameters.
const (
	WarmTopCoursesLimit = 10
	WarmRevenueDays     = 30
)

// DashboardCache caches the tenant dashboard aggregates. Every entry carries
// the tag tenant_{t}:dashboard, so Clear is a single tag flush.
type DashboardCache struct {
	store    *cache.Store
	source   DashboardSource
	stats    *cache.Typed[DashboardStats]
	rankings *cache.Typed[[]CourseRanking]
	revenue  *cache.Typed[[]RevenuePoint]
	activity *cache.Typed[[]Activity]
	now      func() time.Time
	logger   zerolog.Logger
}

// DashboardOption configures a DashboardCache.
type DashboardOption func(*DashboardCache)

// WithNow sets the clock used to compute revenue windows.
func WithNow(now func() time.Time) DashboardOption {
	return func(c *DashboardCache) {
		c.now = now
	}
}

// NewDashboardCache creates the dashboard cache.
func NewDashboardCache(store *cache.Store, source DashboardSource, logger zerolog.Logger, opts ...DashboardOption) *DashboardCache {
	c := &DashboardCache{
		store:    store,
		source:   source,
		stats:    cache.NewTyped[DashboardStats](store, FamilyDashboard),
		rankings: cache.NewTyped[[]CourseRanking](store, FamilyDashboard),
		revenue:  cache.NewTyped[[]RevenuePoint](store, FamilyDashboard),
		activity: cache.NewTyped[[]Activity](store, FamilyDashboard),
		now:      time.Now,
		logger:   logger.With().Str("family", FamilyDashboard).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatsKey is the key of a tenant's dashboard stats.
func (c *DashboardCache) StatsKey(tenantID int64) string {
	return cache.TenantKey(FamilyDashboard, tenantID, "stats")
}

// TopCoursesKey is the key of a tenant's top courses list.
func (c *DashboardCache) TopCoursesKey(tenantID int64, limit int) string {
	return cache.TenantKey(FamilyDashboard, tenantID, "top_courses:"+strconv.Itoa(limit))
}

// RevenueKey is the key of a tenant's daily revenue over the last days.
func (c *DashboardCache) RevenueKey(tenantID int64, days int) string {
	return cache.TenantKey(FamilyDashboard, tenantID, "revenue:"+strconv.Itoa(days))
}

// RecentActivityKey is the key of a tenant's recent activity feed.
func (c *DashboardCache) RecentActivityKey(tenantID int64, limit int) string {
	return cache.TenantKey(FamilyDashboard, tenantID, "activity:"+strconv.Itoa(limit))
}

// Tag returns the tag carried by every dashboard entry of a tenant.
func (c *DashboardCache) Tag(tenantID int64) string {
	return cache.TenantTag(FamilyDashboard, tenantID)
}

// Stats returns the dashboard stats of a tenant.
func (c *DashboardCache) Stats(ctx context.Context, tenantID int64) (DashboardStats, error) {
	return c.stats.Remember(ctx, c.StatsKey(tenantID), cache.TTLShort,
		c.statsLoader(tenantID), c.Tag(tenantID))
}

// TopCourses returns the tenant's best selling courses.
func (c *DashboardCache) TopCourses(ctx context.Context, tenantID int64, limit int) ([]CourseRanking, error) {
	return c.rankings.Remember(ctx, c.TopCoursesKey(tenantID, limit), cache.TTLDefault,
		c.topCoursesLoader(tenantID, limit), c.Tag(tenantID))
}

// Revenue returns the tenant's daily revenue over the last days.
func (c *DashboardCache) Revenue(ctx context.Context, tenantID int64, days int) ([]RevenuePoint, error) {
	return c.revenue.Remember(ctx, c.RevenueKey(tenantID, days), cache.TTLDefault,
		c.revenueLoader(tenantID, days), c.Tag(tenantID))
}

// RecentActivity returns the tenant's latest events.
func (c *DashboardCache) RecentActivity(ctx context.Context, tenantID int64, limit int) ([]Activity, error) {
	return c.activity.Remember(ctx, c.RecentActivityKey(tenantID, limit), cache.TTLShort,
		func(ctx context.Context) ([]Activity, error) {
			return c.source.RecentActivity(ctx, tenantID, limit)
		},
		c.Tag(tenantID),
	)
}

// Clear drops every dashboard entry of a tenant.
func (c *DashboardCache) Clear(ctx context.Context, tenantID int64) error {
	return c.store.FlushTag(ctx, c.Tag(tenantID))
}

// Warm recomputes the stats, top courses and revenue of a tenant. The
// activity feed is short-lived and left to fill on demand.
func (c *DashboardCache) Warm(ctx context.Context, tenantID int64) error {
	tags := []string{c.Tag(tenantID)}

	if _, err := c.stats.Refresh(ctx, c.StatsKey(tenantID), cache.TTLShort,
		c.statsLoader(tenantID), func(DashboardStats) []string { return tags }); err != nil {
		return err
	}
	if _, err := c.rankings.Refresh(ctx, c.TopCoursesKey(tenantID, WarmTopCoursesLimit), cache.TTLDefault,
		c.topCoursesLoader(tenantID, WarmTopCoursesLimit), func([]CourseRanking) []string { return tags }); err != nil {
		return err
	}
	if _, err := c.revenue.Refresh(ctx, c.RevenueKey(tenantID, WarmRevenueDays), cache.TTLDefault,
		c.revenueLoader(tenantID, WarmRevenueDays), func([]RevenuePoint) []string { return tags }); err != nil {
		return err
	}

	c.logger.Debug().Int64("tenant_id", tenantID).Msg("Warmed dashboard cache")
	return nil
}

func (c *DashboardCache) statsLoader(tenantID int64) cache.Loader[DashboardStats] {
	return func(ctx context.Context) (DashboardStats, error) {
		return c.source.DashboardStats(ctx, tenantID)
	}
}

func (c *DashboardCache) topCoursesLoader(tenantID int64, limit int) cache.Loader[[]CourseRanking] {
	return func(ctx context.Context) ([]CourseRanking, error) {
		return c.source.TopCourses(ctx, tenantID, limit)
	}
}

func (c *DashboardCache) revenueLoader(tenantID int64, days int) cache.Loader[[]RevenuePoint] {
	return func(ctx context.Context) ([]RevenuePoint, error) {
		since := c.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
		return c.source.Revenue(ctx, tenantID, since)
	}
}
