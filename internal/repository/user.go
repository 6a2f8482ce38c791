package repository

import (
	"context"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
)

// User loads a user profile.
func (r *Repository) User(ctx context.Context, userID int64) (entity.UserView, error) {
	var user entity.UserView
	err := r.get(ctx, &user, `
		SELECT id, tenant_id, name, email, role, created_at FROM users WHERE id = ?`, userID)
	return user, err
}

// UsersForTenant lists one page of a tenant's users ordered by id.
func (r *Repository) UsersForTenant(ctx context.Context, tenantID int64, page, perPage int) (entity.Page[entity.UserSummary], error) {
	page, perPage, offset := pageBounds(page, perPage)
	result := entity.Page[entity.UserSummary]{Items: []entity.UserSummary{}, Page: page, PerPage: perPage}

	if err := r.get(ctx, &result.Total,
		`SELECT COUNT(*) FROM users WHERE tenant_id = ?`, tenantID); err != nil {
		return result, err
	}
	err := r.selectAll(ctx, &result.Items, `
		SELECT id, tenant_id, name, email, role
		FROM users WHERE tenant_id = ?
		ORDER BY id LIMIT ? OFFSET ?`, tenantID, perPage, offset)
	return result, err
}

// UserStats aggregates a user's enrollments, completions, certificates and spend.
func (r *Repository) UserStats(ctx context.Context, userID int64) (entity.UserStats, error) {
	if err := r.exists(ctx, "users", userID); err != nil {
		return entity.UserStats{}, err
	}

	stats := entity.UserStats{UserID: userID}
	err := r.get(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE user_id = ?) AS enrollments,
			(SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND completed_at IS NOT NULL) AS completed,
			(SELECT COUNT(*) FROM certificates WHERE user_id = ?) AS certificates,
			(SELECT COALESCE(SUM(amount_cents), 0) FROM purchases WHERE user_id = ?) AS spent_cents`,
		userID, userID, userID, userID)
	if err != nil {
		return entity.UserStats{}, err
	}
	return stats, nil
}

type enrollmentRow struct {
	entity.Enrollment
	Done  int `db:"done"`
	Total int `db:"total"`
}

// Enrollments lists a user's enrollments with course titles and progress.
func (r *Repository) Enrollments(ctx context.Context, userID int64) ([]entity.Enrollment, error) {
	if err := r.exists(ctx, "users", userID); err != nil {
		return nil, err
	}

	var rows []enrollmentRow
	err := r.selectAll(ctx, &rows, `
		SELECT
			e.course_id, c.title AS course_title, e.enrolled_at, e.completed_at,
			(SELECT COUNT(*) FROM lesson_completions lc
				JOIN lessons l ON l.id = lc.lesson_id
				JOIN sections s ON s.id = l.section_id
				WHERE lc.user_id = e.user_id AND s.course_id = e.course_id) AS done,
			(SELECT COUNT(*) FROM lessons l JOIN sections s ON s.id = l.section_id
				WHERE s.course_id = e.course_id) AS total
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = ?
		ORDER BY e.enrolled_at DESC, e.id DESC`, userID)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Enrollment, 0, len(rows))
	for _, row := range rows {
		e := row.Enrollment
		e.ProgressPercent = percent(row.Done, row.Total)
		out = append(out, e)
	}
	return out, nil
}

// Progress loads the completed lessons of a user in a course. A user who is
// not enrolled has no progress.
func (r *Repository) Progress(ctx context.Context, userID, courseID int64) (entity.Progress, error) {
	var enrolled int
	if err := r.get(ctx, &enrolled,
		`SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND course_id = ?`, userID, courseID); err != nil {
		return entity.Progress{}, err
	}
	if enrolled == 0 {
		return entity.Progress{}, entity.ErrNotFound
	}

	progress := entity.Progress{UserID: userID, CourseID: courseID, CompletedLessons: []int64{}}
	if err := r.selectAll(ctx, &progress.CompletedLessons, `
		SELECT lc.lesson_id
		FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		JOIN sections s ON s.id = l.section_id
		WHERE lc.user_id = ? AND s.course_id = ?
		ORDER BY lc.lesson_id`, userID, courseID); err != nil {
		return entity.Progress{}, err
	}
	if err := r.get(ctx, &progress.TotalLessons, `
		SELECT COUNT(*) FROM lessons l JOIN sections s ON s.id = l.section_id
		WHERE s.course_id = ?`, courseID); err != nil {
		return entity.Progress{}, err
	}
	progress.Percent = percent(len(progress.CompletedLessons), progress.TotalLessons)
	return progress, nil
}
