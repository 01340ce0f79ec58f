package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid credential, or a
	// credential with no matching local user record.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a domain uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited indicates too many attempts within the window.
	ErrRateLimited = errors.New("rate limited")
)

// Conflict builds a uniqueness-violation error carrying an entity-specific
// message for the client. It still matches ErrConflict under errors.Is.
func Conflict(message string) error {
	return &conflictError{message: message}
}

type conflictError struct {
	message string
}

func (e *conflictError) Error() string { return e.message }

func (e *conflictError) Is(target error) bool { return target == ErrConflict }
