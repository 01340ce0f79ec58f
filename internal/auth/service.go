package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/identity"
	"github.com/zubair-sh/next-admin/internal/ratelimit"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// errDuplicateEmail names the email uniqueness violation for clients.
var errDuplicateEmail = shared.Conflict("User with this email already exists")

// DefaultRoleName is assigned to self-registered accounts.
const DefaultRoleName = "User"

// Mailer enqueues outbound account mail. Delivery is asynchronous; the
// service treats enqueue failure on forgot-password as non-fatal.
type Mailer interface {
	EnqueuePasswordReset(ctx context.Context, email, token string) error
	EnqueueWelcome(ctx context.Context, email, name string) error
}

// Session is the result of a successful login or refresh.
type Session struct {
	Principal       *authz.Principal
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// Service implements the authentication flows: login, token refresh,
// self-registration, password recovery, and profile self-service.
type Service struct {
	provider   identity.Provider
	repo       Repository
	principals authz.Store
	tokens     *TokenManager
	refresh    *RefreshStore
	resets     *ResetStore
	limiter    *ratelimit.FixedWindow
	mailer     Mailer
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(provider identity.Provider, repo Repository, principals authz.Store,
	tokens *TokenManager, refresh *RefreshStore, resets *ResetStore,
	limiter *ratelimit.FixedWindow, mailer Mailer, logger *slog.Logger) *Service {
	return &Service{
		provider:   provider,
		repo:       repo,
		principals: principals,
		tokens:     tokens,
		refresh:    refresh,
		resets:     resets,
		limiter:    limiter,
		mailer:     mailer,
		logger:     logger,
	}
}

// Login verifies credentials and opens a session. Attempts are counted per
// client key before credentials are checked, so failed and successful logins
// both consume the window.
func (s *Service) Login(ctx context.Context, clientKey, email, password string) (*Session, error) {
	ok, err := s.limiter.Allow(ctx, clientKey)
	if err != nil {
		s.logger.Warn("login rate limiter unavailable", slog.String("error", err.Error()))
	}
	if !ok {
		return nil, shared.ErrRateLimited
	}

	subjectID, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	principal, err := s.principals.FindPrincipal(ctx, subjectID)
	if err != nil {
		// Credential record without a directory row: treat as a bad login
		// rather than leaking the desync to the caller.
		s.logger.Error("authenticated subject missing from directory", slog.String("subject_id", subjectID))
		return nil, shared.ErrInvalidCredentials
	}
	if principal.User.Status != authz.UserStatusActive {
		return nil, shared.ErrInvalidCredentials
	}
	return s.openSession(ctx, principal)
}

// Refresh rotates a refresh token and issues a new access token. The spent
// token is invalid afterwards even when a later step fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.refresh.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	principal, err := s.principals.FindPrincipal(ctx, userID)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	if principal.User.Status != authz.UserStatusActive {
		return nil, shared.ErrUnauthenticated
	}
	return s.openSession(ctx, principal)
}

// Logout revokes the presented refresh token. Missing or unknown tokens are
// not an error; logout always succeeds from the caller's point of view.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.refresh.Revoke(ctx, refreshToken)
}

// SignUpRequest carries the self-registration fields.
type SignUpRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUp registers credentials with the identity provider, then creates the
// directory record with the default role. If the local insert fails the
// provider registration is compensated so no orphaned credential remains.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*authz.User, error) {
	roleID, err := s.repo.FindRoleIDByName(ctx, DefaultRoleName)
	if err != nil {
		return nil, fmt.Errorf("resolve default role: %w", err)
	}

	subjectID, err := s.provider.Register(ctx, req.Email, req.Password)
	if errors.Is(err, shared.ErrConflict) {
		return nil, errDuplicateEmail
	}
	if err != nil {
		return nil, err
	}

	user := &authz.User{
		ID:        subjectID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		FullName:  FullName(req.FirstName, req.LastName),
		Status:    authz.UserStatusActive,
		RoleID:    roleID,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if derr := s.provider.Delete(ctx, subjectID); derr != nil {
			s.logger.Error("compensating credential delete failed",
				slog.String("subject_id", subjectID), slog.String("error", derr.Error()))
		}
		if errors.Is(err, shared.ErrConflict) {
			return nil, errDuplicateEmail
		}
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.EnqueueWelcome(ctx, user.Email, user.FullName); err != nil {
			s.logger.Warn("enqueue welcome mail failed", slog.String("error", err.Error()))
		}
	}
	return user, nil
}

// ForgotPassword issues a reset token and mails it when the account exists.
// It reports success either way so the endpoint cannot be used to probe for
// registered addresses.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error("forgot-password lookup failed", slog.String("error", err.Error()))
		return nil
	}
	token, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		s.logger.Error("issue reset token failed", slog.String("error", err.Error()))
		return nil
	}
	if s.mailer != nil {
		if err := s.mailer.EnqueuePasswordReset(ctx, user.Email, token); err != nil {
			s.logger.Error("enqueue reset mail failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password, and revokes
// every outstanding session for the account.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}
	if err := s.provider.UpdateCredentials(ctx, userID, "", password); err != nil {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("revoke sessions after reset failed", slog.String("error", err.Error()))
	}
	return nil
}

// ProfileUpdate carries the self-service profile fields. Empty fields are
// left unchanged.
type ProfileUpdate struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UpdateProfile updates the caller's credentials first, then the directory
// record, and returns the updated user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*authz.User, error) {
	if upd.Email != "" || upd.Password != "" {
		if err := s.provider.UpdateCredentials(ctx, userID, upd.Email, upd.Password); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return nil, errDuplicateEmail
			}
			return nil, err
		}
	}
	user, err := s.repo.UpdateProfile(ctx, userID, upd.Email, upd.FirstName, upd.LastName)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, errDuplicateEmail
		}
		return nil, err
	}
	if upd.Password != "" {
		if err := s.refresh.RevokeAll(ctx, userID); err != nil {
			s.logger.Warn("revoke sessions after password change failed", slog.String("error", err.Error()))
		}
	}
	return user, nil
}

// DeleteAccount removes the caller's credentials, directory record, and all
// outstanding sessions.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.provider.Delete(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err := s.refresh.RevokeAll(ctx, userID); err != nil {
		s.logger.Warn("revoke sessions after account delete failed", slog.String("error", err.Error()))
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, principal *authz.Principal) (*Session, error) {
	access, expiresAt, err := s.tokens.Issue(principal.User.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Issue(ctx, principal.User.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Principal:       principal,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refreshToken,
	}, nil
}
