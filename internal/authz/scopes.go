package authz

// Permission strings declared per-route. These are a stable public contract
// between route guards, client affordance checks, and the seed catalogue.
const (
	PermUserCreate  = "user:create"
	PermUserRead    = "user:read"
	PermUserReadAll = "user:read_all"
	PermUserUpdate  = "user:update"
	PermUserDelete  = "user:delete"

	PermRoleCreate  = "role:create"
	PermRoleRead    = "role:read"
	PermRoleReadAll = "role:read_all"
	PermRoleUpdate  = "role:update"
	PermRoleDelete  = "role:delete"

	PermPermissionCreate  = "permission:create"
	PermPermissionRead    = "permission:read"
	PermPermissionReadAll = "permission:read_all"
	PermPermissionUpdate  = "permission:update"
	PermPermissionDelete  = "permission:delete"

	PermDashboardRead  = "dashboard:read"
	PermAnalyticsRead  = "analytics:read"
	PermSettingsRead   = "settings:read"
	PermSettingsUpdate = "settings:update"
)

// CatalogueEntry describes one seeded permission.
type CatalogueEntry struct {
	Action      string
	Subject     string
	Description string
}

// Catalogue returns the full permission registry installed by the seed
// process. The (action, subject) pairs are unique.
func Catalogue() []CatalogueEntry {
	return []CatalogueEntry{
		{"create", "User", "Create new users"},
		{"read", "User", "View user details"},
		{"read_all", "User", "View all users list"},
		{"update", "User", "Update user information"},
		{"delete", "User", "Delete users"},

		{"create", "Role", "Create new roles"},
		{"read", "Role", "View role details"},
		{"read_all", "Role", "View all roles list"},
		{"update", "Role", "Update role information"},
		{"delete", "Role", "Delete roles"},

		{"create", "Permission", "Create new permissions"},
		{"read", "Permission", "View permission details"},
		{"read_all", "Permission", "View all permissions list"},
		{"update", "Permission", "Update permission information"},
		{"delete", "Permission", "Delete permissions"},

		{"read", "Dashboard", "Access dashboard"},
		{"read", "Analytics", "View analytics"},

		{"read", "Settings", "View settings"},
		{"update", "Settings", "Update settings"},
	}
}
