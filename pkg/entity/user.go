package entity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// UserCache caches user profiles, stats, enrollments, per-course progress and
// tenant user listings.
//
// Tags: user_{id} on every per-user entry, tenant_{t}:users on listings and
// tenant_{t}:user_profiles on profiles.
type UserCache struct {
	store       *cache.Store
	source      UserSource
	views       *cache.Typed[UserView]
	pages       *cache.Typed[Page[UserSummary]]
	stats       *cache.Typed[UserStats]
	enrollments *cache.Typed[[]Enrollment]
	progress    *cache.Typed[Progress]
	logger      zerolog.Logger
}

// NewUserCache creates the user cache.
func NewUserCache(store *cache.Store, source UserSource, logger zerolog.Logger) *UserCache {
	return &UserCache{
		store:       store,
		source:      source,
		views:       cache.NewTyped[UserView](store, FamilyUser),
		pages:       cache.NewTyped[Page[UserSummary]](store, FamilyUser),
		stats:       cache.NewTyped[UserStats](store, FamilyUser),
		enrollments: cache.NewTyped[[]Enrollment](store, FamilyUser),
		progress:    cache.NewTyped[Progress](store, FamilyUser),
		logger:      logger.With().Str("family", FamilyUser).Logger(),
	}
}

// ByIDKey is the key of a user profile.
func (c *UserCache) ByIDKey(userID int64) string {
	return cache.UserKey("profile", userID)
}

// StatsKey is the key of a user's stats.
func (c *UserCache) StatsKey(userID int64) string {
	return cache.UserKey("stats", userID)
}

// EnrollmentsKey is the key of a user's enrollments.
func (c *UserCache) EnrollmentsKey(userID int64) string {
	return cache.UserKey("enrollments", userID)
}

// ProgressKey is the key of a user's progress in one course.
func (c *UserCache) ProgressKey(userID, courseID int64) string {
	return cache.UserKey("progress", userID, strconv.FormatInt(courseID, 10))
}

// PageKey is the key of one page of a tenant's user listing.
func (c *UserCache) PageKey(tenantID int64, page, perPage int) string {
	return cache.PaginatedKey(familyUsers, tenantID, page, perPage)
}

// ByID returns a user profile.
func (c *UserCache) ByID(ctx context.Context, userID int64) (UserView, error) {
	return c.views.RememberTagged(ctx, c.ByIDKey(userID), cache.TTLDefault,
		func(ctx context.Context) (UserView, error) {
			return c.source.User(ctx, userID)
		},
		userViewTags(userID),
	)
}

// PageForTenant returns one page of a tenant's users.
func (c *UserCache) PageForTenant(ctx context.Context, tenantID int64, page, perPage int) (Page[UserSummary], error) {
	return c.pages.Remember(ctx, c.PageKey(tenantID, page, perPage), cache.TTLDefault,
		func(ctx context.Context) (Page[UserSummary], error) {
			return c.source.UsersForTenant(ctx, tenantID, page, perPage)
		},
		cache.TenantTag(familyUsers, tenantID),
	)
}

// Stats returns the short-lived aggregate of a user.
func (c *UserCache) Stats(ctx context.Context, userID int64) (UserStats, error) {
	return c.stats.Remember(ctx, c.StatsKey(userID), cache.TTLShort,
		func(ctx context.Context) (UserStats, error) {
			return c.source.UserStats(ctx, userID)
		},
		cache.EntityTag(FamilyUser, userID),
	)
}

// Enrollments returns a user's enrollments with course titles.
func (c *UserCache) Enrollments(ctx context.Context, userID int64) ([]Enrollment, error) {
	return c.enrollments.Remember(ctx, c.EnrollmentsKey(userID), cache.TTLDefault,
		func(ctx context.Context) ([]Enrollment, error) {
			return c.source.Enrollments(ctx, userID)
		},
		cache.EntityTag(FamilyUser, userID),
	)
}

// Progress returns a user's progress in one course.
func (c *UserCache) Progress(ctx context.Context, userID, courseID int64) (Progress, error) {
	return c.progress.Remember(ctx, c.ProgressKey(userID, courseID), cache.TTLShort,
		func(ctx context.Context) (Progress, error) {
			return c.source.Progress(ctx, userID, courseID)
		},
		cache.EntityTag(FamilyUser, userID),
	)
}

// ClearEntity drops every entry of one user, then the tenant's user listings.
func (c *UserCache) ClearEntity(ctx context.Context, userID, tenantID int64) error {
	err := c.store.FlushTag(ctx, cache.EntityTag(FamilyUser, userID))
	return errors.Join(err, c.ClearTenant(ctx, tenantID))
}

// ClearTenant drops every page of the tenant's user listings.
func (c *UserCache) ClearTenant(ctx context.Context, tenantID int64) error {
	return c.store.FlushTag(ctx, cache.TenantTag(familyUsers, tenantID))
}

// PurgeTenant drops the tenant's listings and every cached profile of the
// tenant.
func (c *UserCache) PurgeTenant(ctx context.Context, tenantID int64) error {
	err := c.store.FlushTag(ctx, cache.TenantTag(userProfiles, tenantID))
	return errors.Join(err, c.ClearTenant(ctx, tenantID))
}

// ClearProgress drops the progress entry of one user in one course, plus the
// user's stats and enrollments whose percentages derive from it.
func (c *UserCache) ClearProgress(ctx context.Context, userID, courseID int64) error {
	var errs []error
	for _, key := range []string{c.ProgressKey(userID, courseID), c.StatsKey(userID), c.EnrollmentsKey(userID)} {
		if !c.store.Forget(ctx, key) {
			errs = append(errs, fmt.Errorf("%w: forget %s", cache.ErrUnavailable, key))
		}
	}
	return errors.Join(errs...)
}

// Warm recomputes and stores a user's profile and stats.
func (c *UserCache) Warm(ctx context.Context, userID int64) error {
	if _, err := c.views.Refresh(ctx, c.ByIDKey(userID), cache.TTLDefault,
		func(ctx context.Context) (UserView, error) {
			return c.source.User(ctx, userID)
		},
		userViewTags(userID),
	); err != nil {
		return err
	}

	_, err := c.stats.Refresh(ctx, c.StatsKey(userID), cache.TTLShort,
		func(ctx context.Context) (UserStats, error) {
			return c.source.UserStats(ctx, userID)
		},
		func(UserStats) []string { return []string{cache.EntityTag(FamilyUser, userID)} },
	)
	if err == nil {
		c.logger.Debug().Int64("user_id", userID).Msg("Warmed user cache")
	}
	return err
}

func userViewTags(userID int64) func(UserView) []string {
	return func(v UserView) []string {
		return []string{
			cache.EntityTag(FamilyUser, userID),
			cache.TenantTag(userProfiles, v.TenantID),
		}
	}
}
