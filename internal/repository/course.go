package repository

import (
	"context"
	"errors"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
)

// Course loads a course with its category, enrolled count and content tree.
func (r *Repository) Course(ctx context.Context, courseID int64) (entity.CourseView, error) {
	var view entity.CourseView
	err := r.get(ctx, &view, `
		SELECT id, tenant_id, category_id, title, slug, status, price_cents, description, created_at
		FROM courses WHERE id = ?`, courseID)
	if err != nil {
		return entity.CourseView{}, err
	}

	if view.CategoryID != nil {
		var category entity.Category
		err := r.get(ctx, &category, `
			SELECT id, tenant_id, parent_id, name, slug FROM categories WHERE id = ?`, *view.CategoryID)
		if err == nil {
			view.Category = &category
		} else if !errors.Is(err, entity.ErrNotFound) {
			return entity.CourseView{}, err
		}
	}

	if err := r.get(ctx, &view.EnrolledCount,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID); err != nil {
		return entity.CourseView{}, err
	}

	sections, err := r.sections(ctx, courseID)
	if err != nil {
		return entity.CourseView{}, err
	}
	view.Sections = sections
	return view, nil
}

type lessonRow struct {
	entity.Lesson
	SectionID int64 `db:"section_id"`
}

func (r *Repository) sections(ctx context.Context, courseID int64) ([]entity.Section, error) {
	sections := []entity.Section{}
	if err := r.selectAll(ctx, &sections, `
		SELECT id, title, position FROM sections
		WHERE course_id = ? ORDER BY position, id`, courseID); err != nil {
		return nil, err
	}

	var lessons []lessonRow
	if err := r.selectAll(ctx, &lessons, `
		SELECT l.id, l.section_id, l.title, l.position
		FROM lessons l JOIN sections s ON s.id = l.section_id
		WHERE s.course_id = ? ORDER BY l.position, l.id`, courseID); err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(sections))
	for i := range sections {
		sections[i].Lessons = []entity.Lesson{}
		index[sections[i].ID] = i
	}
	for _, l := range lessons {
		if i, ok := index[l.SectionID]; ok {
			sections[i].Lessons = append(sections[i].Lessons, l.Lesson)
		}
	}
	return sections, nil
}

// CoursesForTenant lists one page of a tenant's courses ordered by id.
func (r *Repository) CoursesForTenant(ctx context.Context, tenantID int64, page, perPage int) (entity.Page[entity.CourseSummary], error) {
	page, perPage, offset := pageBounds(page, perPage)
	result := entity.Page[entity.CourseSummary]{Items: []entity.CourseSummary{}, Page: page, PerPage: perPage}

	if err := r.get(ctx, &result.Total,
		`SELECT COUNT(*) FROM courses WHERE tenant_id = ?`, tenantID); err != nil {
		return result, err
	}
	err := r.selectAll(ctx, &result.Items, `
		SELECT id, tenant_id, category_id, title, slug, status, price_cents
		FROM courses WHERE tenant_id = ?
		ORDER BY id LIMIT ? OFFSET ?`, tenantID, perPage, offset)
	return result, err
}

// CourseStats aggregates enrollments, completions, progress, revenue and
// certificates of a course.
func (r *Repository) CourseStats(ctx context.Context, courseID int64) (entity.CourseStats, error) {
	if err := r.exists(ctx, "courses", courseID); err != nil {
		return entity.CourseStats{}, err
	}

	stats := entity.CourseStats{CourseID: courseID}
	err := r.get(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE course_id = ?) AS enrollments,
			(SELECT COUNT(*) FROM enrollments WHERE course_id = ? AND completed_at IS NOT NULL) AS completions,
			(SELECT COALESCE(SUM(amount_cents), 0) FROM purchases WHERE course_id = ?) AS revenue_cents,
			(SELECT COUNT(*) FROM certificates WHERE course_id = ?) AS certificates`,
		courseID, courseID, courseID, courseID)
	if err != nil {
		return entity.CourseStats{}, err
	}

	var counts struct {
		Done  int `db:"done"`
		Total int `db:"total"`
	}
	err = r.get(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM lesson_completions lc
				JOIN lessons l ON l.id = lc.lesson_id
				JOIN sections s ON s.id = l.section_id
				JOIN enrollments e ON e.user_id = lc.user_id AND e.course_id = s.course_id
				WHERE s.course_id = ?) AS done,
			(SELECT COUNT(*) FROM lessons l JOIN sections s ON s.id = l.section_id
				WHERE s.course_id = ?) AS total`,
		courseID, courseID)
	if err != nil {
		return entity.CourseStats{}, err
	}
	stats.AverageProgress = percent(counts.Done, counts.Total*stats.Enrollments)
	return stats, nil
}

// EnrolledUsers lists the users enrolled in a course.
func (r *Repository) EnrolledUsers(ctx context.Context, courseID int64) ([]entity.UserSummary, error) {
	if err := r.exists(ctx, "courses", courseID); err != nil {
		return nil, err
	}
	users := []entity.UserSummary{}
	err := r.selectAll(ctx, &users, `
		SELECT u.id, u.tenant_id, u.name, u.email, u.role
		FROM users u JOIN enrollments e ON e.user_id = u.id
		WHERE e.course_id = ? ORDER BY u.id`, courseID)
	return users, err
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
