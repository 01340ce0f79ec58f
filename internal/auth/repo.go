package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/db"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// Repository is the persistence surface the auth service needs for the local
// user directory. The credential store itself lives behind identity.Provider.
type Repository interface {
	CreateUser(ctx context.Context, user *authz.User) error
	FindUserByEmail(ctx context.Context, email string) (*authz.User, error)
	FindRoleIDByName(ctx context.Context, name string) (string, error)
	UpdateProfile(ctx context.Context, userID, email, firstName, lastName string) (*authz.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// PGRepository implements Repository on postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts the directory record for a freshly registered subject.
func (r *PGRepository) CreateUser(ctx context.Context, user *authz.User) error {
	const q = `
		INSERT INTO users (id, email, first_name, last_name, full_name, status, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`
	_, err := r.pool.Exec(ctx, q,
		user.ID, user.Email, user.FirstName, user.LastName, FullName(user.FirstName, user.LastName),
		user.Status, user.RoleID)
	if db.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByEmail looks a user up by email, case-insensitively.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*authz.User, error) {
	const q = `
		SELECT id, email, first_name, last_name, full_name, status, role_id, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)`
	var user authz.User
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
		&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindRoleIDByName resolves a role name to its id.
func (r *PGRepository) FindRoleIDByName(ctx context.Context, name string) (string, error) {
	const q = `SELECT id FROM roles WHERE name = $1`
	var id string
	err := r.pool.QueryRow(ctx, q, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find role by name: %w", err)
	}
	return id, nil
}

// UpdateProfile applies the self-service profile fields and returns the
// updated row. Empty arguments leave the corresponding column untouched.
func (r *PGRepository) UpdateProfile(ctx context.Context, userID, email, firstName, lastName string) (*authz.User, error) {
	const q = `
		UPDATE users
		SET email = COALESCE(NULLIF($2, ''), email),
		    first_name = COALESCE(NULLIF($3, ''), first_name),
		    last_name = COALESCE(NULLIF($4, ''), last_name),
		    full_name = TRIM(COALESCE(NULLIF($3, ''), first_name) || ' ' || COALESCE(NULLIF($4, ''), last_name)),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, first_name, last_name, full_name, status, role_id, created_at, updated_at`
	var user authz.User
	err := r.pool.QueryRow(ctx, q, userID, email, firstName, lastName).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
		&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if db.IsUniqueViolation(err) {
		return nil, shared.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

// DeleteUser removes the directory record.
func (r *PGRepository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FullName joins the name parts the way the directory stores them.
func FullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
