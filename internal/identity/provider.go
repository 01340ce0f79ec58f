// Package identity models the external identity provider holding credentials.
// The rest of the application only depends on the Provider interface; user
// records live in the local store and reference provider subjects by id.
package identity

import "context"

// Provider manages credentials for subjects. Implementations must treat the
// subject id as stable: it doubles as the local user record id.
type Provider interface {
	// Register creates a credential and returns the new subject id.
	Register(ctx context.Context, email, password string) (string, error)
	// Authenticate verifies email/password and returns the subject id.
	// Failures return shared.ErrInvalidCredentials without detail.
	Authenticate(ctx context.Context, email, password string) (string, error)
	// UpdateCredentials changes email and/or password; empty values are
	// left untouched.
	UpdateCredentials(ctx context.Context, subjectID, email, password string) error
	// Delete removes the credential. Used directly and as the compensating
	// action when a two-phase write fails on the local side.
	Delete(ctx context.Context, subjectID string) error
}
