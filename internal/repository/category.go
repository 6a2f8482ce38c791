package repository

import (
	"context"

	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
)

// Categories lists a tenant's categories by name.
func (r *Repository) Categories(ctx context.Context, tenantID int64) ([]entity.Category, error) {
	categories := []entity.Category{}
	err := r.selectAll(ctx, &categories, `
		SELECT id, tenant_id, parent_id, name, slug
		FROM categories WHERE tenant_id = ?
		ORDER BY name, id`, tenantID)
	return categories, err
}

// CategoriesWithCourseCounts lists a tenant's categories with the number of
// published courses in each.
func (r *Repository) CategoriesWithCourseCounts(ctx context.Context, tenantID int64) ([]entity.Category, error) {
	categories := []entity.Category{}
	err := r.selectAll(ctx, &categories, `
		SELECT c.id, c.tenant_id, c.parent_id, c.name, c.slug, COUNT(co.id) AS course_count
		FROM categories c
		LEFT JOIN courses co ON co.category_id = c.id AND co.status = 'published'
		WHERE c.tenant_id = ?
		GROUP BY c.id, c.tenant_id, c.parent_id, c.name, c.slug
		ORDER BY c.name, c.id`, tenantID)
	return categories, err
}
