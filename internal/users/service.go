// Package users implements administrative user management. Credentials live
// behind the identity provider; this package owns the directory records and
// keeps the two stores consistent with compensating writes.
package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/identity"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// ListFilters narrows and orders the user list.
type ListFilters struct {
	Page     int
	PageSize int
	Search   string
	Status   string
	RoleID   string
	SortBy   string
	SortDir  string
}

// ListResult is one page of users with its pagination envelope.
type ListResult struct {
	Items      []authz.User      `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// CreateInput carries the fields for an admin-created account.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleID    string
	Status    authz.UserStatus
}

// UpdateInput carries the mutable directory fields; empty values are left
// unchanged.
type UpdateInput struct {
	Email     string
	FirstName string
	LastName  string
	RoleID    string
	Status    authz.UserStatus
}

// ErrDuplicateEmail names the uniqueness violation for clients.
var ErrDuplicateEmail = shared.Conflict("User with this email already exists")

// RepositoryPort defines data access for users.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]authz.User, int, error)
	ListAll(ctx context.Context) ([]authz.User, error)
	Find(ctx context.Context, id string) (*authz.User, error)
	Create(ctx context.Context, user *authz.User) error
	Update(ctx context.Context, id string, in UpdateInput) (*authz.User, error)
	Delete(ctx context.Context, id string) error
}

// Service handles user management business logic.
type Service struct {
	repo     RepositoryPort
	provider identity.Provider
	logger   *slog.Logger
}

// NewService builds a Service.
func NewService(repo RepositoryPort, provider identity.Provider, logger *slog.Logger) *Service {
	return &Service{repo: repo, provider: provider, logger: logger}
}

var userSortColumns = map[string]string{
	"email":     "email",
	"fullName":  "full_name",
	"status":    "status",
	"createdAt": "created_at",
}

func normalizeFilters(f ListFilters) ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 10
	}
	if _, ok := userSortColumns[f.SortBy]; !ok {
		f.SortBy = "createdAt"
	}
	if f.SortDir != "asc" && f.SortDir != "desc" {
		f.SortDir = "desc"
	}
	return f
}

// List returns one page of users with their roles attached.
func (s *Service) List(ctx context.Context, f ListFilters) (*ListResult, error) {
	f = normalizeFilters(f)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []authz.User{}
	}
	return &ListResult{Items: items, Pagination: shared.NewPagination(f.Page, f.PageSize, total)}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id string) (*authz.User, error) {
	return s.repo.Find(ctx, id)
}

// Create registers credentials first, then the directory record. When the
// directory insert fails the credential is deleted again so a retry starts
// clean.
func (s *Service) Create(ctx context.Context, in CreateInput) (*authz.User, error) {
	subjectID, err := s.provider.Register(ctx, in.Email, in.Password)
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = authz.UserStatusActive
	}
	user := &authz.User{
		ID:        subjectID,
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Status:    status,
		RoleID:    in.RoleID,
	}
	user.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)

	if err := s.repo.Create(ctx, user); err != nil {
		if derr := s.provider.Delete(ctx, subjectID); derr != nil {
			s.logger.Error("compensating credential delete failed",
				slog.String("subject_id", subjectID), slog.String("error", derr.Error()))
		}
		if errors.Is(err, shared.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return s.repo.Find(ctx, user.ID)
}

// Update applies directory changes and pushes an email change through to the
// credential store.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*authz.User, error) {
	if in.Email != "" {
		if err := s.provider.UpdateCredentials(ctx, id, in.Email, ""); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return nil, ErrDuplicateEmail
			}
			return nil, err
		}
	}
	user, err := s.repo.Update(ctx, id, in)
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrDuplicateEmail
	}
	return user, err
}

// Delete removes credentials and the directory record. A missing credential
// does not block the directory delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.provider.Delete(ctx, id); err != nil {
		s.logger.Warn("credential delete failed, removing directory record anyway",
			slog.String("user_id", id), slog.String("error", err.Error()))
	}
	return s.repo.Delete(ctx, id)
}

// ExportAll returns every user for the CSV download.
func (s *Service) ExportAll(ctx context.Context) ([]authz.User, error) {
	return s.repo.ListAll(ctx)
}
