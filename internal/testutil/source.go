// Package testutil provides fakes shared by the LMS cache tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
)

// Source is an in-memory data store implementing every entity source. It
// fabricates deterministic records from the requested ids, all owned by one
// tenant, and counts calls per method so tests can assert on loader runs.
type Source struct {
	TenantID int64

	mu      sync.Mutex
	calls   map[string]int
	err     error
	missing map[int64]bool
}

var (
	_ entity.CourseSource    = (*Source)(nil)
	_ entity.UserSource      = (*Source)(nil)
	_ entity.CategorySource  = (*Source)(nil)
	_ entity.DashboardSource = (*Source)(nil)
)

// NewSource creates a source whose records belong to tenantID.
func NewSource(tenantID int64) *Source {
	return &Source{
		TenantID: tenantID,
		calls:    make(map[string]int),
		missing:  make(map[int64]bool),
	}
}

// Fail makes every following call return err. Fail(nil) restores normal operation.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Missing makes lookups of id return entity.ErrNotFound.
func (s *Source) Missing(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing[id] = true
}

// Calls returns how often method ran.
func (s *Source) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Reset clears the call counters.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

func (s *Source) record(method string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.err != nil {
		return s.err
	}
	if s.missing[id] {
		return entity.ErrNotFound
	}
	return nil
}

func (s *Source) Course(_ context.Context, courseID int64) (entity.CourseView, error) {
	if err := s.record("Course", courseID); err != nil {
		return entity.CourseView{}, err
	}
	return entity.CourseView{
		CourseSummary: s.courseSummary(courseID),
		Description:   fmt.Sprintf("Description of course %d", courseID),
		EnrolledCount: 3,
		Sections: []entity.Section{{
			ID: courseID * 10, Title: "Introduction", Position: 1,
			Lessons: []entity.Lesson{{ID: courseID * 100, Title: "Welcome", Position: 1}},
		}},
	}, nil
}

func (s *Source) CoursesForTenant(_ context.Context, tenantID int64, page, perPage int) (entity.Page[entity.CourseSummary], error) {
	if err := s.record("CoursesForTenant", 0); err != nil {
		return entity.Page[entity.CourseSummary]{}, err
	}
	items := make([]entity.CourseSummary, 0, perPage)
	for i := 0; i < perPage; i++ {
		items = append(items, s.courseSummary(int64((page-1)*perPage+i+1)))
	}
	return entity.Page[entity.CourseSummary]{Items: items, Page: page, PerPage: perPage, Total: perPage * 3}, nil
}

func (s *Source) CourseStats(_ context.Context, courseID int64) (entity.CourseStats, error) {
	if err := s.record("CourseStats", courseID); err != nil {
		return entity.CourseStats{}, err
	}
	return entity.CourseStats{CourseID: courseID, Enrollments: 4, Completions: 1, RevenueCents: 19900}, nil
}

func (s *Source) EnrolledUsers(_ context.Context, courseID int64) ([]entity.UserSummary, error) {
	if err := s.record("EnrolledUsers", courseID); err != nil {
		return nil, err
	}
	return []entity.UserSummary{s.userSummary(1), s.userSummary(2)}, nil
}

func (s *Source) User(_ context.Context, userID int64) (entity.UserView, error) {
	if err := s.record("User", userID); err != nil {
		return entity.UserView{}, err
	}
	return entity.UserView{UserSummary: s.userSummary(userID)}, nil
}

func (s *Source) UsersForTenant(_ context.Context, tenantID int64, page, perPage int) (entity.Page[entity.UserSummary], error) {
	if err := s.record("UsersForTenant", 0); err != nil {
		return entity.Page[entity.UserSummary]{}, err
	}
	items := make([]entity.UserSummary, 0, perPage)
	for i := 0; i < perPage; i++ {
		items = append(items, s.userSummary(int64((page-1)*perPage+i+1)))
	}
	return entity.Page[entity.UserSummary]{Items: items, Page: page, PerPage: perPage, Total: perPage * 2}, nil
}

func (s *Source) UserStats(_ context.Context, userID int64) (entity.UserStats, error) {
	if err := s.record("UserStats", userID); err != nil {
		return entity.UserStats{}, err
	}
	return entity.UserStats{UserID: userID, Enrollments: 2, Completed: 1, SpentCents: 4900}, nil
}

func (s *Source) Enrollments(_ context.Context, userID int64) ([]entity.Enrollment, error) {
	if err := s.record("Enrollments", userID); err != nil {
		return nil, err
	}
	return []entity.Enrollment{{CourseID: 7, CourseTitle: "Course 7", ProgressPercent: 50}}, nil
}

func (s *Source) Progress(_ context.Context, userID, courseID int64) (entity.Progress, error) {
	if err := s.record("Progress", userID); err != nil {
		return entity.Progress{}, err
	}
	return entity.Progress{UserID: userID, CourseID: courseID, CompletedLessons: []int64{1}, TotalLessons: 2, Percent: 50}, nil
}

func (s *Source) Categories(_ context.Context, tenantID int64) ([]entity.Category, error) {
	if err := s.record("Categories", 0); err != nil {
		return nil, err
	}
	return []entity.Category{{ID: 1, TenantID: tenantID, Name: "Programming", Slug: "programming"}}, nil
}

func (s *Source) CategoriesWithCourseCounts(_ context.Context, tenantID int64) ([]entity.Category, error) {
	if err := s.record("CategoriesWithCourseCounts", 0); err != nil {
		return nil, err
	}
	return []entity.Category{{ID: 1, TenantID: tenantID, Name: "Programming", Slug: "programming", CourseCount: 5}}, nil
}

func (s *Source) DashboardStats(_ context.Context, tenantID int64) (entity.DashboardStats, error) {
	if err := s.record("DashboardStats", 0); err != nil {
		return entity.DashboardStats{}, err
	}
	return entity.DashboardStats{TenantID: tenantID, Users: 10, Courses: 5, Enrollments: 20, Completions: 5, CompletionRate: 25}, nil
}

func (s *Source) TopCourses(_ context.Context, tenantID int64, limit int) ([]entity.CourseRanking, error) {
	if err := s.record("TopCourses", 0); err != nil {
		return nil, err
	}
	out := make([]entity.CourseRanking, 0, limit)
	for i := 1; i <= limit && i <= 3; i++ {
		out = append(out, entity.CourseRanking{CourseID: int64(i), Title: fmt.Sprintf("Course %d", i), Enrollments: 10 - i})
	}
	return out, nil
}

func (s *Source) Revenue(_ context.Context, tenantID int64, since time.Time) ([]entity.RevenuePoint, error) {
	if err := s.record("Revenue", 0); err != nil {
		return nil, err
	}
	return []entity.RevenuePoint{{Day: since.Format("2006-01-02"), RevenueCents: 9900, Purchases: 1}}, nil
}

func (s *Source) RecentActivity(_ context.Context, tenantID int64, limit int) ([]entity.Activity, error) {
	if err := s.record("RecentActivity", 0); err != nil {
		return nil, err
	}
	return []entity.Activity{{Kind: "enrollment", UserID: 1, CourseID: 7}}, nil
}

func (s *Source) courseSummary(id int64) entity.CourseSummary {
	return entity.CourseSummary{
		ID:       id,
		TenantID: s.TenantID,
		Title:    fmt.Sprintf("Course %d", id),
		Slug:     fmt.Sprintf("course-%d", id),
		Status:   "published",
	}
}

func (s *Source) userSummary(id int64) entity.UserSummary {
	return entity.UserSummary{
		ID:       id,
		TenantID: s.TenantID,
		Name:     fmt.Sprintf("User %d", id),
		Email:    fmt.Sprintf("user%d@example.com", id),
		Role:     "student",
	}
}
