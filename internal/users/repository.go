package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/db"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userSelect = `
	SELECT u.id, u.email, u.first_name, u.last_name, u.full_name, u.status, u.role_id,
	       u.created_at, u.updated_at,
	       r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at
	FROM users u
	JOIN roles r ON r.id = u.role_id`

func scanUser(row pgx.Row) (*authz.User, error) {
	var (
		user authz.User
		role authz.Role
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
		&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt,
		&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Role = &role
	return &user, nil
}

// List returns one page of users plus the unpaged total.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]authz.User, int, error) {
	orderBy := userSortColumns[f.SortBy]
	dir := "DESC"
	if f.SortDir == "asc" {
		dir = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT u.id, u.email, u.first_name, u.last_name, u.full_name, u.status, u.role_id,
		       u.created_at, u.updated_at,
		       r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
		       COUNT(*) OVER() AS total
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE ($1 = '' OR u.email ILIKE '%%' || $1 || '%%' OR u.full_name ILIKE '%%' || $1 || '%%')
		  AND ($2 = '' OR u.status = $2)
		  AND ($3 = '' OR u.role_id::text = $3)
		ORDER BY u.%s %s
		LIMIT $4 OFFSET $5`, orderBy, dir)

	rows, err := r.pool.Query(ctx, query, f.Search, f.Status, f.RoleID, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var (
		items []authz.User
		total int
	)
	for rows.Next() {
		var (
			user authz.User
			role authz.Role
		)
		if err := rows.Scan(
			&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
			&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt,
			&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt,
			&total); err != nil {
			return nil, 0, err
		}
		user.Role = &role
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every user ordered by email.
func (r *Repository) ListAll(ctx context.Context) ([]authz.User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` ORDER BY u.email`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	var items []authz.User
	for rows.Next() {
		var (
			user authz.User
			role authz.Role
		)
		if err := rows.Scan(
			&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.FullName,
			&user.Status, &user.RoleID, &user.CreatedAt, &user.UpdatedAt,
			&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		user.Role = &role
		items = append(items, user)
	}
	return items, rows.Err()
}

// Find returns a user with their role attached.
func (r *Repository) Find(ctx context.Context, id string) (*authz.User, error) {
	return scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

// Create inserts the directory record.
func (r *Repository) Create(ctx context.Context, user *authz.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, full_name, status, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		user.ID, user.Email, user.FirstName, user.LastName, user.FullName, user.Status, user.RoleID)
	if db.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update applies non-empty fields and returns the updated row.
func (r *Repository) Update(ctx context.Context, id string, in UpdateInput) (*authz.User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = COALESCE(NULLIF($2, ''), email),
		    first_name = COALESCE(NULLIF($3, ''), first_name),
		    last_name = COALESCE(NULLIF($4, ''), last_name),
		    full_name = TRIM(COALESCE(NULLIF($3, ''), first_name) || ' ' || COALESCE(NULLIF($4, ''), last_name)),
		    status = COALESCE(NULLIF($5, ''), status),
		    role_id = COALESCE(NULLIF($6, '')::uuid, role_id),
		    updated_at = NOW()
		WHERE id = $1`,
		id, in.Email, in.FirstName, in.LastName, string(in.Status), in.RoleID)
	if db.IsUniqueViolation(err) {
		return nil, shared.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.Find(ctx, id)
}

// Delete removes the directory record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
