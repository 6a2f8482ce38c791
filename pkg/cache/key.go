package cache

import (
	"fmt"
	"strings"
)

// Key prefixes for the three ownership scopes. Every tenant-scoped query
// must go through TenantKey or PaginatedKey so the tenant id is part of the key.
const (
	tenantPrefix = "t"
	userPrefix   = "u"
	coursePrefix = "c"
)

// TenantKey builds a key scoped to a tenant.
// Format: t{tenantID}:{type}[:{suffix}...]
//
// Example:
//
//	TenantKey("dashboard", 3, "stats") // "t3:dashboard:stats"
func TenantKey(kind string, tenantID int64, suffix ...string) string {
	return scopedKey(tenantPrefix, kind, tenantID, suffix)
}

// UserKey builds a key scoped to a user.
// Format: u{userID}:{type}[:{suffix}...]
func UserKey(kind string, userID int64, suffix ...string) string {
	return scopedKey(userPrefix, kind, userID, suffix)
}

// CourseKey builds a key scoped to a course.
// Format: c{courseID}:{type}[:{suffix}...]
func CourseKey(kind string, courseID int64, suffix ...string) string {
	return scopedKey(coursePrefix, kind, courseID, suffix)
}

// PaginatedKey builds the key of one page of a tenant listing. Page and page
// size are both part of the key so two pagination requests never collide.
// Format: {entity}_tenant_{tenantID}_page_{page}_per_{perPage}
func PaginatedKey(entity string, tenantID int64, page, perPage int) string {
	return fmt.Sprintf("%s_tenant_%d_page_%d_per_%d", entity, tenantID, page, perPage)
}

// EntityTag is the tag carried by every entry derived from one entity.
// Format: {kind}_{id}
func EntityTag(kind string, id int64) string {
	return fmt.Sprintf("%s_%d", kind, id)
}

// TenantTag groups every entry of one family for a tenant, including all
// pages of its listings.
// Format: tenant_{tenantID}:{family}
func TenantTag(family string, tenantID int64) string {
	return fmt.Sprintf("tenant_%d:%s", tenantID, family)
}

func scopedKey(prefix, kind string, id int64, suffix []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d:%s", prefix, id, kind)
	for _, s := range suffix {
		if s == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
