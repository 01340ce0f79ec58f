package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/ratelimit"
	"github.com/zubair-sh/next-admin/internal/shared"
)

type stubCredential struct {
	email    string
	password string
}

type stubProvider struct {
	mu      sync.Mutex
	creds   map[string]stubCredential
	deleted []string
}

func newStubProvider() *stubProvider {
	return &stubProvider{creds: map[string]stubCredential{}}
}

func (p *stubProvider) Register(_ context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cred := range p.creds {
		if strings.EqualFold(cred.email, email) {
			return "", shared.ErrConflict
		}
	}
	id := uuid.NewString()
	p.creds[id] = stubCredential{email: email, password: password}
	return id, nil
}

func (p *stubProvider) Authenticate(_ context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cred := range p.creds {
		if strings.EqualFold(cred.email, email) && cred.password == password {
			return id, nil
		}
	}
	return "", shared.ErrInvalidCredentials
}

func (p *stubProvider) UpdateCredentials(_ context.Context, subjectID, email, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cred, ok := p.creds[subjectID]
	if !ok {
		return shared.ErrNotFound
	}
	if email != "" {
		cred.email = email
	}
	if password != "" {
		cred.password = password
	}
	p.creds[subjectID] = cred
	return nil
}

func (p *stubProvider) Delete(_ context.Context, subjectID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.creds, subjectID)
	p.deleted = append(p.deleted, subjectID)
	return nil
}

type stubDirectory struct {
	mu        sync.Mutex
	users     map[string]*authz.User
	roles     map[string]string
	roleByID  map[string]*authz.Role
	createErr error
}

func newStubDirectory() *stubDirectory {
	userRole := &authz.Role{ID: uuid.NewString(), Name: "User", Permissions: []authz.Permission{
		{ID: uuid.NewString(), Action: "read", Subject: "Dashboard"},
	}}
	return &stubDirectory{
		users:    map[string]*authz.User{},
		roles:    map[string]string{"User": userRole.ID},
		roleByID: map[string]*authz.Role{userRole.ID: userRole},
	}
}

func (d *stubDirectory) CreateUser(_ context.Context, user *authz.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return d.createErr
	}
	copied := *user
	d.users[user.ID] = &copied
	return nil
}

func (d *stubDirectory) FindUserByEmail(_ context.Context, email string) (*authz.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (d *stubDirectory) FindRoleIDByName(_ context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.roles[name]
	if !ok {
		return "", shared.ErrNotFound
	}
	return id, nil
}

func (d *stubDirectory) UpdateProfile(_ context.Context, userID, email, firstName, lastName string) (*authz.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if email != "" {
		user.Email = email
	}
	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	user.FullName = FullName(user.FirstName, user.LastName)
	copied := *user
	return &copied, nil
}

func (d *stubDirectory) DeleteUser(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[userID]; !ok {
		return shared.ErrNotFound
	}
	delete(d.users, userID)
	return nil
}

// FindPrincipal lets the directory double as the authz store in tests.
func (d *stubDirectory) FindPrincipal(_ context.Context, userID string) (*authz.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	if !ok {
		return nil, authz.ErrPrincipalNotFound
	}
	copied := *user
	if role, ok := d.roleByID[copied.RoleID]; ok {
		copied.Role = role
	}
	return &authz.Principal{User: copied}, nil
}

type stubMailer struct {
	mu          sync.Mutex
	resetTokens map[string]string
	welcomes    []string
}

func newStubMailer() *stubMailer {
	return &stubMailer{resetTokens: map[string]string{}}
}

func (m *stubMailer) EnqueuePasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[email] = token
	return nil
}

func (m *stubMailer) EnqueueWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, email)
	return nil
}

type authFixture struct {
	router    *chi.Mux
	provider  *stubProvider
	directory *stubDirectory
	mailer    *stubMailer
	service   *Service
	resets    *ResetStore
	redis     *miniredis.Miniredis
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := newStubProvider()
	directory := newStubDirectory()
	mailer := newStubMailer()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := NewTokenManager("test-secret", "next-admin-test", 15*time.Minute)
	require.NoError(t, err)
	refresh := NewRefreshStore(client, 24*time.Hour)
	resets := NewResetStore(client, time.Hour)
	limiter := ratelimit.NewFixedWindow(client, 5, 5*time.Minute)

	service := NewService(provider, directory, directory, tokens, refresh, resets, limiter, mailer, logger)
	authn := authz.Middleware{Verifier: tokens, Principals: directory, Logger: logger}
	handler := NewHandler(service, authn, "/api/auth", false)

	router := chi.NewRouter()
	router.Route("/api/auth", handler.Routes)

	return &authFixture{
		router:    router,
		provider:  provider,
		directory: directory,
		mailer:    mailer,
		service:   service,
		resets:    resets,
		redis:     mr,
	}
}

func (f *authFixture) seedUser(t *testing.T, email, password string) *authz.User {
	t.Helper()
	subjectID, err := f.provider.Register(context.Background(), email, password)
	require.NoError(t, err)
	roleID, err := f.directory.FindRoleIDByName(context.Background(), DefaultRoleName)
	require.NoError(t, err)
	user := &authz.User{
		ID:        subjectID,
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		FullName:  "Test User",
		Status:    authz.UserStatusActive,
		RoleID:    roleID,
	}
	require.NoError(t, f.directory.CreateUser(context.Background(), user))
	return user
}

func (f *authFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, string) {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			User        map[string]any `json:"user"`
			AccessToken string         `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data.User, envelope.Data.AccessToken
}

func TestLoginReturnsSessionAndCookies(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	user, accessToken := decodeSession(t, rec)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotEmpty(t, accessToken)

	refreshCookie := findCookie(rec, "refresh_token")
	require.NotNil(t, refreshCookie)
	assert.True(t, refreshCookie.HttpOnly)
	assert.Equal(t, "/api/auth", refreshCookie.Path)

	flagCookie := findCookie(rec, "is_authenticated")
	require.NotNil(t, flagCookie)
	assert.Equal(t, "true", flagCookie.Value)
	assert.False(t, flagCookie.HttpOnly)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"WrongPass1!"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "Sup3r$ecret")
	f.directory.users[user.ID].Status = authz.UserStatusInactive

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestLoginRateLimitedAfterFiveAttempts(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	for i := 0; i < 5; i++ {
		rec := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
			`{"email":"alice@example.com","password":"WrongPass1!"}`))
		require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i+1)
	}

	// The sixth attempt is rejected before credentials are checked, even
	// with the correct password.
	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	f.redis.FastForward(5*time.Minute + time.Second)

	rec = f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	assert.Equal(t, http.StatusOK, rec.Code, "window expiry restores access")
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	login := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	require.Equal(t, http.StatusOK, login.Code)
	oldCookie := findCookie(login, "refresh_token")
	require.NotNil(t, oldCookie)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil)
	req.AddCookie(oldCookie)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, accessToken := decodeSession(t, rec)
	assert.NotEmpty(t, accessToken)
	newCookie := findCookie(rec, "refresh_token")
	require.NotNil(t, newCookie)
	assert.NotEqual(t, oldCookie.Value, newCookie.Value)

	// The spent token is single-use.
	replay := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil)
	replay.AddCookie(oldCookie)
	rec = f.do(replay)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := newAuthFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	login := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	cookie := findCookie(login, "refresh_token")
	require.NotNil(t, cookie)

	logout := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logout.AddCookie(cookie)
	rec := f.do(logout)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := findCookie(rec, "refresh_token")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	refresh := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil)
	refresh.AddCookie(cookie)
	rec = f.do(refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignUpAssignsDefaultRole(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/sign-up",
		`{"email":"bob@example.com","password":"Sup3r$ecret","firstName":"Bob","lastName":"Jones"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	user, err := f.directory.FindUserByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	roleID, err := f.directory.FindRoleIDByName(context.Background(), DefaultRoleName)
	require.NoError(t, err)
	assert.Equal(t, roleID, user.RoleID)
	assert.Equal(t, "Bob Jones", user.FullName)
	assert.Contains(t, f.mailer.welcomes, "bob@example.com")
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/sign-up",
		`{"email":"bob@example.com","password":"alllowercase1!","firstName":"Bob","lastName":"Jones"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password_uppercase_required")
}

func TestSignUpCompensatesWhenDirectoryInsertFails(t *testing.T) {
	f := newAuthFixture(t)
	f.directory.createErr = shared.ErrConflict

	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/sign-up",
		`{"email":"bob@example.com","password":"Sup3r$ecret","firstName":"Bob","lastName":"Jones"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User with this email already exists")

	f.provider.mu.Lock()
	defer f.provider.mu.Unlock()
	assert.Len(t, f.provider.deleted, 1, "provider registration is rolled back")
	assert.Empty(t, f.provider.creds, "no orphaned credential remains")
}

func TestForgotPasswordNeverRevealsAccounts(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	known := f.do(jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"alice@example.com"}`))
	unknown := f.do(jsonRequest(http.MethodPost, "/api/auth/forgot-password",
		`{"email":"nobody@example.com"}`))

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String(),
		"responses must not distinguish known from unknown accounts")

	f.mailer.mu.Lock()
	defer f.mailer.mu.Unlock()
	assert.NotEmpty(t, f.mailer.resetTokens["alice@example.com"])
	assert.Empty(t, f.mailer.resetTokens["nobody@example.com"])
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	token, err := f.resets.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"token":%q,"password":"N3w$ecretPw"}`, token)
	rec := f.do(jsonRequest(http.MethodPost, "/api/auth/reset-password", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err = f.provider.Authenticate(context.Background(), "alice@example.com", "N3w$ecretPw")
	assert.NoError(t, err, "new password is in effect")

	rec = f.do(jsonRequest(http.MethodPost, "/api/auth/reset-password", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token cannot be replayed")
}

func TestProfileRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	login := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	_, accessToken := decodeSession(t, login)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	patch := jsonRequest(http.MethodPatch, "/api/auth/profile", `{"firstName":"Alicia"}`)
	patch.Header.Set("Authorization", "Bearer "+accessToken)
	rec = f.do(patch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Alicia")

	user, err := f.directory.FindUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", user.FirstName)
	assert.Equal(t, "Alicia User", user.FullName)
}

func TestProfileRequiresAuthentication(t *testing.T) {
	f := newAuthFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteAccountRemovesEverything(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "Sup3r$ecret")

	login := f.do(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"Sup3r$ecret"}`))
	_, accessToken := decodeSession(t, login)
	cookie := findCookie(login, "refresh_token")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/delete-account", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := f.directory.FindUserByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.provider.mu.Lock()
	assert.Empty(t, f.provider.creds)
	f.provider.mu.Unlock()

	refresh := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil)
	refresh.AddCookie(cookie)
	rec = f.do(refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
