// Package entity implements the read-through caches of the LMS entity
// families: courses, users, categories and tenant dashboards.
package entity

import (
	"errors"
	"time"
)

// ErrNotFound is returned by sources when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Page is one page of a tenant listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// LastPage returns the number of the last page, 1 for an empty listing.
func (p Page[T]) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// Category is a course category of a tenant.
type Category struct {
	ID          int64  `json:"id" db:"id"`
	TenantID    int64  `json:"tenant_id" db:"tenant_id"`
	ParentID    *int64 `json:"parent_id,omitempty" db:"parent_id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	CourseCount int    `json:"course_count" db:"course_count"`
}

// Lesson is one lesson of a course section.
type Lesson struct {
	ID       int64  `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	Position int    `json:"position" db:"position"`
}

// Section groups the lessons of a course.
type Section struct {
	ID       int64    `json:"id" db:"id"`
	Title    string   `json:"title" db:"title"`
	Position int      `json:"position" db:"position"`
	Lessons  []Lesson `json:"lessons" db:"-"`
}

// CourseSummary is the listing representation of a course.
type CourseSummary struct {
	ID         int64  `json:"id" db:"id"`
	TenantID   int64  `json:"tenant_id" db:"tenant_id"`
	CategoryID *int64 `json:"category_id,omitempty" db:"category_id"`
	Title      string `json:"title" db:"title"`
	Slug       string `json:"slug" db:"slug"`
	Status     string `json:"status" db:"status"`
	PriceCents int64  `json:"price_cents" db:"price_cents"`
}

// CourseView is a course with the associations every course page needs,
// loaded together so they share one cache entry.
type CourseView struct {
	CourseSummary
	Description   string    `json:"description" db:"description"`
	Category      *Category `json:"category,omitempty" db:"-"`
	EnrolledCount int       `json:"enrolled_count" db:"-"`
	Sections      []Section `json:"sections" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// LessonCount returns the number of lessons across all sections.
func (c CourseView) LessonCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Lessons)
	}
	return n
}

// CourseStats is the frequently recomputed aggregate of one course.
type CourseStats struct {
	CourseID        int64   `json:"course_id" db:"course_id"`
	Enrollments     int     `json:"enrollments" db:"enrollments"`
	Completions     int     `json:"completions" db:"completions"`
	AverageProgress float64 `json:"average_progress" db:"average_progress"`
	RevenueCents    int64   `json:"revenue_cents" db:"revenue_cents"`
	Certificates    int     `json:"certificates" db:"certificates"`
}

// CompletionRate returns completions as a percentage of enrollments.
func (s CourseStats) CompletionRate() float64 {
	if s.Enrollments == 0 {
		return 0
	}
	return float64(s.Completions) / float64(s.Enrollments) * 100
}

// UserSummary is the listing representation of a user.
type UserSummary struct {
	ID       int64  `json:"id" db:"id"`
	TenantID int64  `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	Role     string `json:"role" db:"role"`
}

// UserView is a user profile.
type UserView struct {
	UserSummary
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserStats is the frequently recomputed aggregate of one user.
type UserStats struct {
	UserID       int64 `json:"user_id" db:"user_id"`
	Enrollments  int   `json:"enrollments" db:"enrollments"`
	Completed    int   `json:"completed" db:"completed"`
	Certificates int   `json:"certificates" db:"certificates"`
	SpentCents   int64 `json:"spent_cents" db:"spent_cents"`
}

// Enrollment is a user's enrollment in a course.
type Enrollment struct {
	CourseID        int64      `json:"course_id" db:"course_id"`
	CourseTitle     string     `json:"course_title" db:"course_title"`
	ProgressPercent float64    `json:"progress_percent" db:"progress_percent"`
	EnrolledAt      time.Time  `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Progress tracks one user in one course.
type Progress struct {
	UserID           int64   `json:"user_id"`
	CourseID         int64   `json:"course_id"`
	CompletedLessons []int64 `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percent          float64 `json:"percent"`
}

// DashboardStats is the tenant-wide aggregate shown on the admin dashboard.
type DashboardStats struct {
	TenantID         int64   `json:"tenant_id"`
	Users            int     `json:"users"`
	Courses          int     `json:"courses"`
	PublishedCourses int     `json:"published_courses"`
	Enrollments      int     `json:"enrollments"`
	Completions      int     `json:"completions"`
	CompletionRate   float64 `json:"completion_rate"`
	RevenueCents     int64   `json:"revenue_cents"`
	Certificates     int     `json:"certificates"`
}

// CourseRanking is one entry of a dashboard top-courses list.
type CourseRanking struct {
	CourseID     int64  `json:"course_id" db:"course_id"`
	Title        string `json:"title" db:"title"`
	Enrollments  int    `json:"enrollments" db:"enrollments"`
	RevenueCents int64  `json:"revenue_cents" db:"revenue_cents"`
}

// RevenuePoint is the revenue of one day.
type RevenuePoint struct {
	Day          string `json:"day"` // YYYY-MM-DD
	RevenueCents int64  `json:"revenue_cents"`
	Purchases    int    `json:"purchases"`
}

// Activity is one recent event shown on the dashboard.
type Activity struct {
	Kind     string    `json:"kind"` // "enrollment", "purchase", "certificate"
	UserID   int64     `json:"user_id"`
	CourseID int64     `json:"course_id"`
	At       time.Time `json:"at"`
}
