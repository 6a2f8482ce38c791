package cache

import (
	"testing"
)

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "tenant key without suffix",
			got:  TenantKey("categories", 3),
			want: "t3:categories",
		},
		{
			name: "tenant key with suffix",
			got:  TenantKey("dashboard", 3, "stats"),
			want: "t3:dashboard:stats",
		},
		{
			name: "tenant key with multiple suffixes",
			got:  TenantKey("dashboard", 3, "top_courses", "10"),
			want: "t3:dashboard:top_courses:10",
		},
		{
			name: "empty suffix is skipped",
			got:  TenantKey("dashboard", 3, ""),
			want: "t3:dashboard",
		},
		{
			name: "user key",
			got:  UserKey("progress", 11, "42"),
			want: "u11:progress:42",
		},
		{
			name: "course key",
			got:  CourseKey("course", 42),
			want: "c42:course",
		},
		{
			name: "paginated key",
			got:  PaginatedKey("courses", 3, 2, 15),
			want: "courses_tenant_3_page_2_per_15",
		},
		{
			name: "entity tag",
			got:  EntityTag("course", 7),
			want: "course_7",
		},
		{
			name: "tenant tag",
			got:  TenantTag("dashboard", 3),
			want: "tenant_3:dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

// TestKeyBuilders_Determinism ensures same input always produces same key
func TestKeyBuilders_Determinism(t *testing.T) {
	kinds := []string{"course", "stats", "dashboard", "categories"}
	for _, kind := range kinds {
		for id := int64(0); id < 50; id++ {
			if TenantKey(kind, id, "x") != TenantKey(kind, id, "x") {
				t.Errorf("TenantKey(%q, %d) not deterministic", kind, id)
			}
			if UserKey(kind, id) != UserKey(kind, id) {
				t.Errorf("UserKey(%q, %d) not deterministic", kind, id)
			}
			if CourseKey(kind, id) != CourseKey(kind, id) {
				t.Errorf("CourseKey(%q, %d) not deterministic", kind, id)
			}
		}
	}
}

func TestTenantKey_Isolation(t *testing.T) {
	kinds := []string{"course", "users", "dashboard", "categories"}
	for _, kind := range kinds {
		seen := make(map[string]int64)
		for tenant := int64(1); tenant <= 200; tenant++ {
			key := TenantKey(kind, tenant)
			if other, ok := seen[key]; ok {
				t.Fatalf("TenantKey(%q) collides for tenants %d and %d: %s", kind, other, tenant, key)
			}
			seen[key] = tenant
		}
	}
}

func TestPaginatedKey_NoCollisions(t *testing.T) {
	seen := make(map[string]bool)
	for tenant := int64(1); tenant <= 12; tenant++ {
		for page := 1; page <= 12; page++ {
			for _, per := range []int{10, 15, 20, 50, 100} {
				key := PaginatedKey("courses", tenant, page, per)
				if seen[key] {
					t.Fatalf("duplicate paginated key %s", key)
				}
				seen[key] = true
			}
		}
	}
}

func TestScopes_DoNotCollide(t *testing.T) {
	if TenantKey("stats", 1) == UserKey("stats", 1) || UserKey("stats", 1) == CourseKey("stats", 1) {
		t.Error("keys of different scopes must differ for the same id")
	}
}
