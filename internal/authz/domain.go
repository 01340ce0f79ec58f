// Package authz holds the permission data model and the pure authorization
// evaluator shared by the server-side guard and the API client.
package authz

import "time"

// Permission represents an atomic capability as an (action, subject) pair.
// The pair is unique across all permissions.
type Permission struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Role bundles permissions under a unique name. Seed-created roles carry
// IsSystem and cannot be deleted.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	IsSystem    bool         `json:"isSystem"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// UserStatus enumerates account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusDeleted  UserStatus = "deleted"
)

// User is a local account record. Every user references exactly one role.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName,omitempty"`
	FullName  string     `json:"fullName"`
	Status    UserStatus `json:"status"`
	RoleID    string     `json:"roleId"`
	Role      *Role      `json:"role,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Principal is the authenticated actor: a user with its role and permission
// set fully resolved. It is assembled per request and never persisted.
type Principal struct {
	User User `json:"user"`
}

// Role returns the resolved role, nil when the principal carries none.
func (p *Principal) Role() *Role {
	if p == nil {
		return nil
	}
	return p.User.Role
}
