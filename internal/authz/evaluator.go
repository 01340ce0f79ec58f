package authz

import "strings"

// SuperAdminRole is the one role name that bypasses permission checks.
const SuperAdminRole = "Super Admin"

// SplitPermission splits a "subject:action" permission string (for example
// "user:create") on the first colon. ok is false unless both segments are
// non-empty.
func SplitPermission(permission string) (subject, action string, ok bool) {
	subject, action, found := strings.Cut(permission, ":")
	if !found || subject == "" || action == "" {
		return "", "", false
	}
	return subject, action, true
}

// Can reports whether the principal may perform the given permission string.
// The check fails closed: a nil principal, missing role, or malformed
// permission string denies. The Super Admin role name allows unconditionally;
// otherwise the role's permission set must contain a permission whose subject
// matches the first segment (case-insensitive, subjects are stored in entity
// case like "User") and whose action equals the second segment exactly.
// No wildcards, no partial matches.
func Can(p *Principal, permission string) bool {
	role := p.Role()
	if role == nil {
		return false
	}
	if role.Name == SuperAdminRole {
		return true
	}
	subject, action, ok := SplitPermission(permission)
	if !ok {
		return false
	}
	for _, perm := range role.Permissions {
		if perm.Action == action && strings.EqualFold(perm.Subject, subject) {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal's role name matches exactly.
// There is no role hierarchy.
func HasRole(p *Principal, roleName string) bool {
	role := p.Role()
	return role != nil && role.Name == roleName
}

// Key renders the permission in wire format: lowercase subject, colon, action.
func (p Permission) Key() string {
	return strings.ToLower(p.Subject) + ":" + p.Action
}
