package entity

import (
	"context"

	"github.com/Sternrassler/lms-tenant-cache/pkg/cache"
	"github.com/rs/zerolog"
)

// CategoryCache caches a tenant's category list and the per-category course
// counts used by the catalogue sidebar.
type CategoryCache struct {
	store  *cache.Store
	source CategorySource
	lists  *cache.Typed[[]Category]
	logger zerolog.Logger
}

// NewCategoryCache creates the category cache.
func NewCategoryCache(store *cache.Store, source CategorySource, logger zerolog.Logger) *CategoryCache {
	return &CategoryCache{
		store:  store,
		source: source,
		lists:  cache.NewTyped[[]Category](store, FamilyCategory),
		logger: logger.With().Str("family", FamilyCategory).Logger(),
	}
}

// AllKey is the key of a tenant's category list.
func (c *CategoryCache) AllKey(tenantID int64) string {
	return cache.TenantKey(familyCategories, tenantID)
}

// CountsKey is the key of a tenant's categories with course counts.
func (c *CategoryCache) CountsKey(tenantID int64) string {
	return cache.TenantKey(familyCategories, tenantID, "counts")
}

// All returns the categories of a tenant.
func (c *CategoryCache) All(ctx context.Context, tenantID int64) ([]Category, error) {
	return c.lists.Remember(ctx, c.AllKey(tenantID), cache.TTLLong,
		func(ctx context.Context) ([]Category, error) {
			return c.source.Categories(ctx, tenantID)
		},
		cache.TenantTag(familyCategories, tenantID),
	)
}

// WithCourseCounts returns the categories of a tenant with their course counts.
func (c *CategoryCache) WithCourseCounts(ctx context.Context, tenantID int64) ([]Category, error) {
	return c.lists.Remember(ctx, c.CountsKey(tenantID), cache.TTLLong,
		func(ctx context.Context) ([]Category, error) {
			return c.source.CategoriesWithCourseCounts(ctx, tenantID)
		},
		cache.TenantTag(familyCategories, tenantID),
	)
}

// ClearTenant drops every category entry of a tenant.
func (c *CategoryCache) ClearTenant(ctx context.Context, tenantID int64) error {
	return c.store.FlushTag(ctx, cache.TenantTag(familyCategories, tenantID))
}
