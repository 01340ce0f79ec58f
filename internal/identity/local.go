package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/zubair-sh/next-admin/internal/platform/db"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// LocalProvider implements Provider against a credentials table. It stands in
// for a hosted identity service while keeping the two-phase write contract.
type LocalProvider struct {
	pool *pgxpool.Pool
}

// NewLocalProvider constructs a PostgreSQL-backed provider.
func NewLocalProvider(pool *pgxpool.Pool) *LocalProvider {
	return &LocalProvider{pool: pool}
}

// Register creates a credential row and returns the generated subject id.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	subjectID := uuid.NewString()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO credentials (subject_id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`, subjectID, email, string(hash))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return "", shared.ErrConflict
		}
		return "", err
	}
	return subjectID, nil
}

// Authenticate verifies the email/password pair. All failure modes collapse
// into ErrInvalidCredentials so callers cannot probe for registered emails.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	var (
		subjectID string
		hash      string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT subject_id, password_hash FROM credentials WHERE email = $1`, email).
		Scan(&subjectID, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return subjectID, nil
}

// UpdateCredentials rewrites email and/or password for the subject.
func (p *LocalProvider) UpdateCredentials(ctx context.Context, subjectID, email, password string) error {
	if email != "" {
		tag, err := p.pool.Exec(ctx,
			`UPDATE credentials SET email = $2, updated_at = NOW() WHERE subject_id = $1`, subjectID, email)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return shared.ErrConflict
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		tag, err := p.pool.Exec(ctx,
			`UPDATE credentials SET password_hash = $2, updated_at = NOW() WHERE subject_id = $1`, subjectID, string(hash))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
	}
	return nil
}

// Delete removes the credential row. Deleting an unknown subject is not an
// error so compensating rollbacks stay idempotent.
func (p *LocalProvider) Delete(ctx context.Context, subjectID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM credentials WHERE subject_id = $1`, subjectID)
	return err
}

var _ Provider = (*LocalProvider)(nil)
