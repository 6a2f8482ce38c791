package entity

import (
	"context"
	"errors"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// Cache families. Each family owns its key kinds and tags.
const (
	FamilyCourse     = "course"
	FamilyUser       = "user"
	FamilyDashboard  = "dashboard"
	FamilyCategory   = "category"
	familyCourses    = "courses"
	familyUsers      = "users"
	familyCategories = "categories"

	courseViews  = "course_views"
	userProfiles = "user_profiles"
)

// CourseCache caches courses, their stats and their tenant listings.
//
// Every per-course entry carries the tag course_{id}. Listings carry
// tenant_{t}:courses, so ClearTenant reaches every page of every page size in
// one flush. Course views also carry tenant_{t}:course_views for PurgeTenant.
type CourseCache struct {
	store      *cache.Store
	source     CourseSource
	views      *cache.Typed[CourseView]
	pages      *cache.Typed[Page[CourseSummary]]
	stats      *cache.Typed[CourseStats]
	students   *cache.Typed[[]UserSummary]
	categories *CategoryCache
	logger     zerolog.Logger
}

// NewCourseCache creates the course cache. categories may be nil when no
// category cache is deployed.
func NewCourseCache(store *cache.Store, source CourseSource, categories *CategoryCache, logger zerolog.Logger) *CourseCache {
	return &CourseCache{
		store:      store,
		source:     source,
		views:      cache.NewTyped[CourseView](store, FamilyCourse),
		pages:      cache.NewTyped[Page[CourseSummary]](store, FamilyCourse),
		stats:      cache.NewTyped[CourseStats](store, FamilyCourse),
		students:   cache.NewTyped[[]UserSummary](store, FamilyCourse),
		categories: categories,
		logger:     logger.With().Str("family", FamilyCourse).Logger(),
	}
}

// ByIDKey is the key of a course view.
func (c *CourseCache) ByIDKey(courseID int64) string {
	return cache.CourseKey("course", courseID)
}

// StatsKey is the key of a course's stats.
func (c *CourseCache) StatsKey(courseID int64) string {
	return cache.CourseKey("stats", courseID)
}

// StudentsKey is the key of a course's enrolled users.
func (c *CourseCache) StudentsKey(courseID int64) string {
	return cache.CourseKey("students", courseID)
}

// PageKey is the key of one page of a tenant's course listing.
func (c *CourseCache) PageKey(tenantID int64, page, perPage int) string {
	return cache.PaginatedKey(familyCourses, tenantID, page, perPage)
}

// ByID returns a course with category, enrolled count and content tree.
func (c *CourseCache) ByID(ctx context.Context, courseID int64) (CourseView, error) {
	return c.views.RememberTagged(ctx, c.ByIDKey(courseID), cache.TTLDefault,
		func(ctx context.Context) (CourseView, error) {
			return c.source.Course(ctx, courseID)
		},
		courseViewTags(courseID),
	)
}

// PageForTenant returns one page of a tenant's courses.
func (c *CourseCache) PageForTenant(ctx context.Context, tenantID int64, page, perPage int) (Page[CourseSummary], error) {
	return c.pages.Remember(ctx, c.PageKey(tenantID, page, perPage), cache.TTLDefault,
		func(ctx context.Context) (Page[CourseSummary], error) {
			return c.source.CoursesForTenant(ctx, tenantID, page, perPage)
		},
		cache.TenantTag(familyCourses, tenantID),
	)
}

// Stats returns the short-lived aggregate of a course.
func (c *CourseCache) Stats(ctx context.Context, courseID int64) (CourseStats, error) {
	return c.stats.Remember(ctx, c.StatsKey(courseID), cache.TTLShort,
		func(ctx context.Context) (CourseStats, error) {
			return c.source.CourseStats(ctx, courseID)
		},
		cache.EntityTag(FamilyCourse, courseID),
	)
}

// Students returns the users enrolled in a course.
func (c *CourseCache) Students(ctx context.Context, courseID int64) ([]UserSummary, error) {
	return c.students.Remember(ctx, c.StudentsKey(courseID), cache.TTLDefault,
		func(ctx context.Context) ([]UserSummary, error) {
			return c.source.EnrolledUsers(ctx, courseID)
		},
		cache.EntityTag(FamilyCourse, courseID),
	)
}

// ClearEntity drops every entry of one course, then the tenant listings the
// course appears in.
func (c *CourseCache) ClearEntity(ctx context.Context, courseID, tenantID int64) error {
	err := c.store.FlushTag(ctx, cache.EntityTag(FamilyCourse, courseID))
	return errors.Join(err, c.ClearTenant(ctx, tenantID))
}

// ClearTenant drops every page of the tenant's course listings and the
// tenant's category aggregates, whose course counts derive from courses.
func (c *CourseCache) ClearTenant(ctx context.Context, tenantID int64) error {
	err := c.store.FlushTag(ctx, cache.TenantTag(familyCourses, tenantID))
	if c.categories != nil {
		err = errors.Join(err, c.categories.ClearTenant(ctx, tenantID))
	}
	return err
}

// PurgeTenant drops the tenant's listings and every cached course view of the
// tenant. Per-course stats and student lists are left to expire.
func (c *CourseCache) PurgeTenant(ctx context.Context, tenantID int64) error {
	err := c.store.FlushTag(ctx, cache.TenantTag(courseViews, tenantID))
	return errors.Join(err, c.ClearTenant(ctx, tenantID))
}

// Warm recomputes and stores a course's view and stats.
func (c *CourseCache) Warm(ctx context.Context, courseID int64) error {
	if _, err := c.views.Refresh(ctx, c.ByIDKey(courseID), cache.TTLDefault,
		func(ctx context.Context) (CourseView, error) {
			return c.source.Course(ctx, courseID)
		},
		courseViewTags(courseID),
	); err != nil {
		return err
	}

	_, err := c.stats.Refresh(ctx, c.StatsKey(courseID), cache.TTLShort,
		func(ctx context.Context) (CourseStats, error) {
			return c.source.CourseStats(ctx, courseID)
		},
		func(CourseStats) []string { return []string{cache.EntityTag(FamilyCourse, courseID)} },
	)
	if err == nil {
		c.logger.Debug().Int64("course_id", courseID).Msg("Warmed course cache")
	}
	return err
}

func courseViewTags(courseID int64) func(CourseView) []string {
	return func(v CourseView) []string {
		return []string{
			cache.EntityTag(FamilyCourse, courseID),
			cache.TenantTag(courseViews, v.TenantID),
		}
	}
}
