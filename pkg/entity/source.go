package entity

import (
	"context"
	"time"
)

// The sources below are the relational data store as seen by the caches.
// Implementations return ErrNotFound for missing entities; every other error
// is passed through to callers untouched.

// CourseSource loads course data.
type CourseSource interface {
	Course(ctx context.Context, courseID int64) (CourseView, error)
	CoursesForTenant(ctx context.Context, tenantID int64, page, perPage int) (Page[CourseSummary], error)
	CourseStats(ctx context.Context, courseID int64) (CourseStats, error)
	EnrolledUsers(ctx context.Context, courseID int64) ([]UserSummary, error)
}

// UserSource loads user data.
type UserSource interface {
	User(ctx context.Context, userID int64) (UserView, error)
	UsersForTenant(ctx context.Context, tenantID int64, page, perPage int) (Page[UserSummary], error)
	UserStats(ctx context.Context, userID int64) (UserStats, error)
	Enrollments(ctx context.Context, userID int64) ([]Enrollment, error)
	Progress(ctx context.Context, userID, courseID int64) (Progress, error)
}

// CategorySource loads category data.
type CategorySource interface {
	Categories(ctx context.Context, tenantID int64) ([]Category, error)
	CategoriesWithCourseCounts(ctx context.Context, tenantID int64) ([]Category, error)
}

// DashboardSource computes tenant dashboard aggregates.
type DashboardSource interface {
	DashboardStats(ctx context.Context, tenantID int64) (DashboardStats, error)
	TopCourses(ctx context.Context, tenantID int64, limit int) ([]CourseRanking, error)
	Revenue(ctx context.Context, tenantID int64, since time.Time) ([]RevenuePoint, error)
	RecentActivity(ctx context.Context, tenantID int64, limit int) ([]Activity, error)
}
