// Package permissions manages the permission catalogue behind the admin
// screens. Permission rows are referenced by roles; deleting one detaches it
// from every role first.
package permissions

import (
	"context"
	"errors"
	"strings"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// ListFilters narrows and orders the permission list.
type ListFilters struct {
	Page     int
	PageSize int
	Search   string
	SortBy   string
	SortDir  string
}

// ListResult is one page of permissions with its pagination envelope.
type ListResult struct {
	Items      []authz.Permission `json:"items"`
	Pagination shared.Pagination  `json:"pagination"`
}

// RepositoryPort defines data access for permissions.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]authz.Permission, int, error)
	ListAll(ctx context.Context) ([]authz.Permission, error)
	Find(ctx context.Context, id string) (*authz.Permission, error)
	Create(ctx context.Context, action, subject, description string) (*authz.Permission, error)
	Update(ctx context.Context, id, action, subject, description string) (*authz.Permission, error)
	Delete(ctx context.Context, id string) error
}

// Service handles permission business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

var permissionSortColumns = map[string]string{
	"action":    "action",
	"subject":   "subject",
	"createdAt": "created_at",
}

func normalizeFilters(f ListFilters) ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 10
	}
	if _, ok := permissionSortColumns[f.SortBy]; !ok {
		f.SortBy = "createdAt"
	}
	if f.SortDir != "asc" && f.SortDir != "desc" {
		f.SortDir = "desc"
	}
	return f
}

// List returns one page of permissions.
func (s *Service) List(ctx context.Context, f ListFilters) (*ListResult, error) {
	f = normalizeFilters(f)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []authz.Permission{}
	}
	return &ListResult{
		Items:      items,
		Pagination: shared.NewPagination(f.Page, f.PageSize, total),
	}, nil
}

// Get returns a single permission by id.
func (s *Service) Get(ctx context.Context, id string) (*authz.Permission, error) {
	return s.repo.Find(ctx, id)
}

// ErrDuplicatePair names the uniqueness violation for clients.
var ErrDuplicatePair = shared.Conflict("Permission with this action and subject already exists")

// Create registers a new (action, subject) pair. The pair is unique; a
// duplicate surfaces as ErrDuplicatePair.
func (s *Service) Create(ctx context.Context, action, subject, description string) (*authz.Permission, error) {
	p, err := s.repo.Create(ctx, strings.TrimSpace(action), strings.TrimSpace(subject), strings.TrimSpace(description))
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicatePair
	}
	return p, err
}

// Update rewrites a permission. Empty action/subject keep their current value.
func (s *Service) Update(ctx context.Context, id, action, subject, description string) (*authz.Permission, error) {
	p, err := s.repo.Update(ctx, id, strings.TrimSpace(action), strings.TrimSpace(subject), description)
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicatePair
	}
	return p, err
}

// Delete removes a permission, detaching it from every role that grants it.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ExportAll returns every permission for the CSV download.
func (s *Service) ExportAll(ctx context.Context) ([]authz.Permission, error) {
	return s.repo.ListAll(ctx)
}
