package permissions

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

const permissionColumns = `id, action, subject, description, created_at, updated_at`

func scanPermission(row pgx.Row) (*authz.Permission, error) {
	var p authz.Permission
	err := row.Scan(&p.ID, &p.Action, &p.Subject, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns one page of permissions plus the unpaged total.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]authz.Permission, int, error) {
	// Sort inputs are normalized by the service; only whitelisted column
	// names reach this query.
	orderBy := permissionSortColumns[f.SortBy]
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM permissions
		WHERE ($1 = '' OR action ILIKE '%%' || $1 || '%%' OR subject ILIKE '%%' || $1 || '%%')
		ORDER BY %s %s
		LIMIT $2 OFFSET $3`, permissionColumns, orderBy, sortDirSQL(f.SortDir))

	rows, err := r.pool.Query(ctx, query, f.Search, f.PageSize, (f.Page-1)*f.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var (
		items []authz.Permission
		total int
	)
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Subject, &p.Description, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns the full catalogue ordered by subject then action.
func (r *Repository) ListAll(ctx context.Context) ([]authz.Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions ORDER BY subject, action`)
	if err != nil {
		return nil, fmt.Errorf("list all permissions: %w", err)
	}
	defer rows.Close()

	var items []authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Subject, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Find returns a permission by id.
func (r *Repository) Find(ctx context.Context, id string) (*authz.Permission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// Create inserts a permission.
func (r *Repository) Create(ctx context.Context, action, subject, description string) (*authz.Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (id, action, subject, description, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		RETURNING `+permissionColumns, action, subject, description)
	p, err := scanPermission(row)
	if db.IsUniqueViolation(err) {
		return nil, shared.ErrConflict
	}
	return p, err
}

// Update rewrites a permission; empty fields keep their value.
func (r *Repository) Update(ctx context.Context, id, action, subject, description string) (*authz.Permission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET action = COALESCE(NULLIF($2, ''), action),
		    subject = COALESCE(NULLIF($3, ''), subject),
		    description = COALESCE(NULLIF($4, ''), description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns, id, action, subject, description)
	p, err := scanPermission(row)
	if db.IsUniqueViolation(err) {
		return nil, shared.ErrConflict
	}
	return p, err
}

// Delete removes the permission and its role links in one transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return fmt.Errorf("detach permission: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete permission: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func sortDirSQL(dir string) string {
	if dir == "asc" {
		return "ASC"
	}
	return "DESC"
}
