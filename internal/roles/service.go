// Package roles manages role definitions and their permission grants.
// System roles are installed by the seeder and cannot be deleted; any role
// still assigned to users is protected from deletion as well.
package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// ErrRoleInUse is returned when deleting a role that users still hold.
var ErrRoleInUse = errors.New("role is assigned to users and cannot be deleted")

// ErrSystemRole is returned when deleting a seeded role.
var ErrSystemRole = errors.New("system roles cannot be deleted")

// ListFilters narrows and orders the role list.
type ListFilters struct {
	Page     int
	PageSize int
	Search   string
	SortBy   string
	SortDir  string
}

// RoleSummary is one row of the role list, permissions collapsed to a count.
type RoleSummary struct {
	authz.Role
	PermissionCount int `json:"permissionCount"`
	UserCount       int `json:"userCount"`
}

// ListResult is one page of roles with its pagination envelope.
type ListResult struct {
	Items      []RoleSummary     `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// RepositoryPort defines data access for roles.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]RoleSummary, int, error)
	ListAll(ctx context.Context) ([]authz.Role, error)
	Find(ctx context.Context, id string) (*authz.Role, error)
	Create(ctx context.Context, name, description string, permissionIDs []string) (*authz.Role, error)
	Update(ctx context.Context, id, name, description string, permissionIDs []string) (*authz.Role, error)
	Delete(ctx context.Context, id string) error
	CountUsers(ctx context.Context, id string) (int, error)
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

var roleSortColumns = map[string]string{
	"name":      "name",
	"createdAt": "created_at",
}

func normalizeFilters(f ListFilters) ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 10
	}
	if _, ok := roleSortColumns[f.SortBy]; !ok {
		f.SortBy = "createdAt"
	}
	if f.SortDir != "asc" && f.SortDir != "desc" {
		f.SortDir = "desc"
	}
	return f
}

// List returns one page of role summaries.
func (s *Service) List(ctx context.Context, f ListFilters) (*ListResult, error) {
	f = normalizeFilters(f)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []RoleSummary{}
	}
	return &ListResult{Items: items, Pagination: shared.NewPagination(f.Page, f.PageSize, total)}, nil
}

// ListAll returns every role with its permissions, for pickers and export.
func (s *Service) ListAll(ctx context.Context) ([]authz.Role, error) {
	return s.repo.ListAll(ctx)
}

// Get returns a role with its full permission set.
func (s *Service) Get(ctx context.Context, id string) (*authz.Role, error) {
	return s.repo.Find(ctx, id)
}

// ErrDuplicateName names the uniqueness violation for clients.
var ErrDuplicateName = shared.Conflict("Role with this name already exists")

// Create registers a role granting the given permissions.
func (s *Service) Create(ctx context.Context, name, description string, permissionIDs []string) (*authz.Role, error) {
	role, err := s.repo.Create(ctx, strings.TrimSpace(name), strings.TrimSpace(description), dedupe(permissionIDs))
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicateName
	}
	return role, err
}

// Update rewrites a role. A non-nil permissionIDs replaces the entire grant
// set; nil leaves grants untouched.
func (s *Service) Update(ctx context.Context, id, name, description string, permissionIDs []string) (*authz.Role, error) {
	if permissionIDs != nil {
		permissionIDs = dedupe(permissionIDs)
	}
	role, err := s.repo.Update(ctx, id, strings.TrimSpace(name), description, permissionIDs)
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicateName
	}
	return role, err
}

// Delete removes a role. Seeded roles and roles still held by users are
// protected.
func (s *Service) Delete(ctx context.Context, id string) error {
	role, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	users, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return err
	}
	if users > 0 {
		return ErrRoleInUse
	}
	return s.repo.Delete(ctx, id)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
