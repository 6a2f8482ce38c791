// Package manager orchestrates cache invalidation across the entity caches.
//
// Write paths call the Manager after changing the source of truth. Every
// cascade runs each of its steps independently: a failing step is logged and
// counted, the remaining steps still run, and nothing is returned to the
// caller. A read racing an invalidation may observe either state.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// CourseInvalidator is the course cache as seen by the Manager.
type CourseInvalidator interface {
	ClearEntity(ctx context.Context, courseID, tenantID int64) error
	ClearTenant(ctx context.Context, tenantID int64) error
	PurgeTenant(ctx context.Context, tenantID int64) error
}

// UserInvalidator is the user cache as seen by the Manager.
type UserInvalidator interface {
	ClearEntity(ctx context.Context, userID, tenantID int64) error
	ClearProgress(ctx context.Context, userID, courseID int64) error
	PurgeTenant(ctx context.Context, tenantID int64) error
}

// DashboardInvalidator is the dashboard cache as seen by the Manager.
type DashboardInvalidator interface {
	Clear(ctx context.Context, tenantID int64) error
	Warm(ctx context.Context, tenantID int64) error
}

// CategoryInvalidator is the category cache as seen by the Manager.
type CategoryInvalidator interface {
	ClearTenant(ctx context.Context, tenantID int64) error
}

// Manager is the single entry point for cache invalidation, tenant-wide
// operations and cache introspection.
type Manager struct {
	store      *cache.Store
	courses    CourseInvalidator
	users      UserInvalidator
	dashboard  DashboardInvalidator
	categories CategoryInvalidator
	logger     zerolog.Logger
}

// New creates a Manager.
func New(store *cache.Store, courses CourseInvalidator, users UserInvalidator, dashboard DashboardInvalidator, categories CategoryInvalidator, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{
		store:      store,
		courses:    courses,
		users:      users,
		dashboard:  dashboard,
		categories: categories,
		logger:     logger,
	}
}

// step is one independent part of a cascade.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// cascade runs every step, whatever the outcome of the others, and returns
// the number of failed steps.
func (m *Manager) cascade(ctx context.Context, scope string, fields map[string]interface{}, steps ...step) int {
	Invalidations.WithLabelValues(scope).Inc()
	logger := m.logger.With().Str("scope", scope).Fields(fields).Logger()

	failed := 0
	for _, s := range steps {
		if err := runStep(ctx, s); err != nil {
			failed++
			InvalidationFailures.WithLabelValues(scope).Inc()
			logger.Warn().Err(err).Str("step", s.name).Msg("Cache invalidation step failed")
		}
	}

	if failed == 0 {
		logger.Debug().Int("steps", len(steps)).Msg("Cache invalidated")
	} else {
		logger.Warn().Int("steps", len(steps)).Int("failed", failed).Msg("Cache invalidated partially")
	}
	return failed
}

func runStep(ctx context.Context, s step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", s.name, r)
		}
	}()
	return s.run(ctx)
}

// ClearTenantCache drops every cached course, user, category and dashboard
// entry of a tenant.
func (m *Manager) ClearTenantCache(ctx context.Context, tenantID int64) {
	m.cascade(ctx, "tenant", map[string]interface{}{"tenant_id": tenantID},
		step{"courses", func(ctx context.Context) error { return m.courses.PurgeTenant(ctx, tenantID) }},
		step{"users", func(ctx context.Context) error { return m.users.PurgeTenant(ctx, tenantID) }},
		step{"categories", func(ctx context.Context) error { return m.categories.ClearTenant(ctx, tenantID) }},
		step{"dashboard", func(ctx context.Context) error { return m.dashboard.Clear(ctx, tenantID) }},
	)
}

// ClearCourseRelatedCache is called after a course changes. Course stats feed
// the dashboard aggregates, so the dashboard is cleared too.
func (m *Manager) ClearCourseRelatedCache(ctx context.Context, courseID, tenantID int64) {
	m.cascade(ctx, "course", map[string]interface{}{"course_id": courseID, "tenant_id": tenantID},
		step{"course", func(ctx context.Context) error { return m.courses.ClearEntity(ctx, courseID, tenantID) }},
		step{"dashboard", func(ctx context.Context) error { return m.dashboard.Clear(ctx, tenantID) }},
	)
}

// ClearUserRelatedCache is called after a user changes.
func (m *Manager) ClearUserRelatedCache(ctx context.Context, userID, tenantID int64) {
	m.cascade(ctx, "user", map[string]interface{}{"user_id": userID, "tenant_id": tenantID},
		step{"user", func(ctx context.Context) error { return m.users.ClearEntity(ctx, userID, tenantID) }},
		step{"dashboard", func(ctx context.Context) error { return m.dashboard.Clear(ctx, tenantID) }},
	)
}

// ClearProgressRelatedCache is called after a user completes a lesson.
// Only the progress entries of that pair are dropped, plus the dashboard
// whose completion rates derive from them.
func (m *Manager) ClearProgressRelatedCache(ctx context.Context, userID, courseID, tenantID int64) {
	m.cascade(ctx, "progress", map[string]interface{}{"user_id": userID, "course_id": courseID, "tenant_id": tenantID},
		step{"progress", func(ctx context.Context) error { return m.users.ClearProgress(ctx, userID, courseID) }},
		step{"dashboard", func(ctx context.Context) error { return m.dashboard.Clear(ctx, tenantID) }},
	)
}

// ClearPurchaseRelatedCache is called after a user buys a course.
func (m *Manager) ClearPurchaseRelatedCache(ctx context.Context, userID, courseID, tenantID int64) {
	m.cascade(ctx, "purchase", map[string]interface{}{"user_id": userID, "course_id": courseID, "tenant_id": tenantID},
		m.userCourseDashboard(userID, courseID, tenantID)...)
}

// ClearCertificateRelatedCache is called after a certificate is issued.
func (m *Manager) ClearCertificateRelatedCache(ctx context.Context, userID, courseID, tenantID int64) {
	m.cascade(ctx, "certificate", map[string]interface{}{"user_id": userID, "course_id": courseID, "tenant_id": tenantID},
		m.userCourseDashboard(userID, courseID, tenantID)...)
}

func (m *Manager) userCourseDashboard(userID, courseID, tenantID int64) []step {
	return []step{
		{"user", func(ctx context.Context) error { return m.users.ClearEntity(ctx, userID, tenantID) }},
		{"course", func(ctx context.Context) error { return m.courses.ClearEntity(ctx, courseID, tenantID) }},
		{"dashboard", func(ctx context.Context) error { return m.dashboard.Clear(ctx, tenantID) }},
	}
}

// ClearCategoryRelatedCache is called after a category changes. Course
// listings embed category data, so they go too.
func (m *Manager) ClearCategoryRelatedCache(ctx context.Context, tenantID int64) {
	m.cascade(ctx, "category", map[string]interface{}{"tenant_id": tenantID},
		step{"categories", func(ctx context.Context) error { return m.categories.ClearTenant(ctx, tenantID) }},
		step{"course_listings", func(ctx context.Context) error { return m.courses.ClearTenant(ctx, tenantID) }},
	)
}

// WarmUpTenantCache precomputes the tenant dashboard. Individual courses and
// users are not warmed here; see package warmup for batch warming.
// Failures are logged and reported as false.
func (m *Manager) WarmUpTenantCache(ctx context.Context, tenantID int64) bool {
	start := time.Now()
	if err := m.dashboard.Warm(ctx, tenantID); err != nil {
		Warmups.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Int64("tenant_id", tenantID).Msg("Tenant cache warm-up failed")
		return false
	}
	Warmups.WithLabelValues("success").Inc()
	m.logger.Info().Int64("tenant_id", tenantID).Dur("took", time.Since(start)).Msg("Tenant cache warmed")
	return true
}
