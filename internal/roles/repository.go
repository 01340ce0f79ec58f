package roles

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

const roleColumns = `r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at`

// List returns one page of role summaries plus the unpaged total.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]RoleSummary, int, error) {
	orderBy := roleSortColumns[f.SortBy]
	dir := "DESC"
	if f.SortDir == "asc" {
		dir = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT %s,
		       (SELECT COUNT(*) FROM role_permissions rp WHERE rp.role_id = r.id) AS permission_count,
		       (SELECT COUNT(*) FROM users u WHERE u.role_id = r.id) AS user_count,
		       COUNT(*) OVER() AS total
		FROM roles r
		WHERE ($1 = '' OR r.name ILIKE '%%' || $1 || '%%')
		ORDER BY r.%s %s
		LIMIT $2 OFFSET $3`, roleColumns, orderBy, dir)

	rows, err := r.pool.Query(ctx, query, f.Search, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var (
		items []RoleSummary
		total int
	)
	for rows.Next() {
		var item RoleSummary
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.IsSystem,
			&item.CreatedAt, &item.UpdatedAt, &item.PermissionCount, &item.UserCount, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every role with its permission set attached.
func (r *Repository) ListAll(ctx context.Context) ([]authz.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles r ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("list all roles: %w", err)
	}
	defer rows.Close()

	var roles []authz.Role
	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem,
			&role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		permissions, err := r.rolePermissions(ctx, r.pool, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = permissions
	}
	return roles, nil
}

// Find returns a role with its full permission set.
func (r *Repository) Find(ctx context.Context, id string) (*authz.Role, error) {
	var role authz.Role
	err := r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles r WHERE r.id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	permissions, err := r.rolePermissions(ctx, r.pool, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = permissions
	return &role, nil
}

// Create inserts a role and its permission links in one transaction.
func (r *Repository) Create(ctx context.Context, name, description string, permissionIDs []string) (*authz.Role, error) {
	var roleID string
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (id, name, description, is_system, created_at, updated_at)
			VALUES (gen_random_uuid(), $1, $2, FALSE, NOW(), NOW())
			RETURNING id`, name, description).Scan(&roleID)
		if db.IsUniqueViolation(err) {
			return shared.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
		return r.linkPermissions(ctx, tx, roleID, permissionIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, roleID)
}

// Update rewrites a role; empty name/description keep their value. A non-nil
// permissionIDs replaces the grant set.
func (r *Repository) Update(ctx context.Context, id, name, description string, permissionIDs []string) (*authz.Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE roles
			SET name = COALESCE(NULLIF($2, ''), name),
			    description = COALESCE(NULLIF($3, ''), description),
			    updated_at = NOW()
			WHERE id = $1`, id, name, description)
		if db.IsUniqueViolation(err) {
			return shared.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if permissionIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		return r.linkPermissions(ctx, tx, id, permissionIDs)
	})
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id)
}

// Delete removes the role row. Grant protection runs in the service; the
// join rows go first so the foreign key cannot block the delete.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CountUsers returns how many users currently hold the role.
func (r *Repository) CountUsers(ctx context.Context, id string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count role users: %w", err)
	}
	return count, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) rolePermissions(ctx context.Context, q querier, roleID string) ([]authz.Permission, error) {
	rows, err := q.Query(ctx, `
		SELECT p.id, p.action, p.subject, p.description, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.subject, p.action`, roleID)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Subject, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

func (r *Repository) linkPermissions(ctx context.Context, tx pgx.Tx, roleID string, permissionIDs []string) error {
	for _, permissionID := range permissionIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)`, roleID, permissionID)
		if err != nil {
			// An unknown permission id violates the foreign key; surface
			// it as a plain validation failure.
			return fmt.Errorf("link permission %s: %w", permissionID, err)
		}
	}
	return nil
}
