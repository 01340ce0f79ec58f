package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// unique_violation per PostgreSQL SQLSTATE.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
