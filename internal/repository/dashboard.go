package repository

import (
	"context"
	"sort"
	"time"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
)

// DashboardStats aggregates the tenant-wide dashboard figures.
func (r *Repository) DashboardStats(ctx context.Context, tenantID int64) (entity.DashboardStats, error) {
	var row struct {
		Users            int   `db:"users"`
		Courses          int   `db:"courses"`
		PublishedCourses int   `db:"published_courses"`
		Enrollments      int   `db:"enrollments"`
		Completions      int   `db:"completions"`
		RevenueCents     int64 `db:"revenue_cents"`
		Certificates     int   `db:"certificates"`
	}
	err := r.get(ctx, &row, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE tenant_id = ?) AS users,
			(SELECT COUNT(*) FROM courses WHERE tenant_id = ?) AS courses,
			(SELECT COUNT(*) FROM courses WHERE tenant_id = ? AND status = 'published') AS published_courses,
			(SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id
				WHERE c.tenant_id = ?) AS enrollments,
			(SELECT COUNT(*) FROM enrollments e JOIN courses c ON c.id = e.course_id
				WHERE c.tenant_id = ? AND e.completed_at IS NOT NULL) AS completions,
			(SELECT COALESCE(SUM(amount_cents), 0) FROM purchases WHERE tenant_id = ?) AS revenue_cents,
			(SELECT COUNT(*) FROM certificates ce JOIN courses c ON c.id = ce.course_id
				WHERE c.tenant_id = ?) AS certificates`,
		tenantID, tenantID, tenantID, tenantID, tenantID, tenantID, tenantID)
	if err != nil {
		return entity.DashboardStats{}, err
	}

	return entity.DashboardStats{
		TenantID:         tenantID,
		Users:            row.Users,
		Courses:          row.Courses,
		PublishedCourses: row.PublishedCourses,
		Enrollments:      row.Enrollments,
		Completions:      row.Completions,
		CompletionRate:   percent(row.Completions, row.Enrollments),
		RevenueCents:     row.RevenueCents,
		Certificates:     row.Certificates,
	}, nil
}

// TopCourses ranks a tenant's courses by revenue, then enrollments.
func (r *Repository) TopCourses(ctx context.Context, tenantID int64, limit int) ([]entity.CourseRanking, error) {
	if limit <= 0 {
		limit = 10
	}
	rankings := []entity.CourseRanking{}
	err := r.selectAll(ctx, &rankings, `
		SELECT
			c.id AS course_id,
			c.title,
			(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollments,
			(SELECT COALESCE(SUM(p.amount_cents), 0) FROM purchases p WHERE p.course_id = c.id) AS revenue_cents
		FROM courses c
		WHERE c.tenant_id = ?
		ORDER BY revenue_cents DESC, enrollments DESC, c.id
		LIMIT ?`, tenantID, limit)
	return rankings, err
}

// Revenue sums a tenant's purchases per UTC day from since onwards. Days
// without purchases are omitted.
func (r *Repository) Revenue(ctx context.Context, tenantID int64, since time.Time) ([]entity.RevenuePoint, error) {
	var purchases []struct {
		AmountCents int64     `db:"amount_cents"`
		PurchasedAt time.Time `db:"purchased_at"`
	}
	if err := r.selectAll(ctx, &purchases, `
		SELECT amount_cents, purchased_at FROM purchases
		WHERE tenant_id = ? AND purchased_at >= ?
		ORDER BY purchased_at`, tenantID, since.UTC()); err != nil {
		return nil, err
	}

	points := []entity.RevenuePoint{}
	for _, p := range purchases {
		day := p.PurchasedAt.UTC().Format("2006-01-02")
		if n := len(points); n > 0 && points[n-1].Day == day {
			points[n-1].RevenueCents += p.AmountCents
			points[n-1].Purchases++
			continue
		}
		points = append(points, entity.RevenuePoint{Day: day, RevenueCents: p.AmountCents, Purchases: 1})
	}
	return points, nil
}

type activityRow struct {
	UserID   int64     `db:"user_id"`
	CourseID int64     `db:"course_id"`
	At       time.Time `db:"at"`
}

// RecentActivity merges the latest enrollments, purchases and certificates
// of a tenant, newest first.
func (r *Repository) RecentActivity(ctx context.Context, tenantID int64, limit int) ([]entity.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	sources := []struct {
		kind  string
		query string
	}{
		{"enrollment", `
			SELECT e.user_id, e.course_id, e.enrolled_at AS at
			FROM enrollments e JOIN courses c ON c.id = e.course_id
			WHERE c.tenant_id = ? ORDER BY e.enrolled_at DESC LIMIT ?`},
		{"purchase", `
			SELECT user_id, course_id, purchased_at AS at
			FROM purchases WHERE tenant_id = ? ORDER BY purchased_at DESC LIMIT ?`},
		{"certificate", `
			SELECT ce.user_id, ce.course_id, ce.issued_at AS at
			FROM certificates ce JOIN courses c ON c.id = ce.course_id
			WHERE c.tenant_id = ? ORDER BY ce.issued_at DESC LIMIT ?`},
	}

	activity := []entity.Activity{}
	for _, src := range sources {
		var rows []activityRow
		if err := r.selectAll(ctx, &rows, src.query, tenantID, limit); err != nil {
			return nil, err
		}
		for _, row := range rows {
			activity = append(activity, entity.Activity{
				Kind:     src.kind,
				UserID:   row.UserID,
				CourseID: row.CourseID,
				At:       row.At,
			})
		}
	}

	sort.SliceStable(activity, func(i, j int) bool { return activity[i].At.After(activity[j].At) })
	if len(activity) > limit {
		activity = activity[:limit]
	}
	return activity, nil
}
