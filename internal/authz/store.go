package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPrincipalNotFound indicates the subject id has no local user record
// (identity-provider/local-store desync).
var ErrPrincipalNotFound = errors.New("authz: principal not found")

// Store loads principals for request authentication.
type Store interface {
	FindPrincipal(ctx context.Context, userID string) (*Principal, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL principal store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// FindPrincipal assembles the principal by joining the user to its role and
// the role's permission set.
func (s *PGStore) FindPrincipal(ctx context.Context, userID string) (*Principal, error) {
	var (
		user User
		role Role
	)
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.first_name, u.last_name, u.full_name, u.status, u.role_id,
		       u.created_at, u.updated_at,
		       r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, userID).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
		&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt,
		&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.action, p.subject, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.subject, p.action`, role.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Action, &perm.Subject, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = append(role.Permissions, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	user.Role = &role
	return &Principal{User: user}, nil
}

var _ Store = (*PGStore)(nil)
