package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// fakeAPI simulates the server's session endpoints: login hands out the
// current token, protected routes reject stale ones, refresh rotates.
type fakeAPI struct {
	mu           sync.Mutex
	currentToken string
	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshFails bool
	dataCalls    atomic.Int32
}

func (f *fakeAPI) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentToken
}

func (f *fakeAPI) setToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentToken = token
}

func (f *fakeAPI) sessionBody(token string) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"accessToken": token,
			"user": authz.User{
				ID:     "user-1",
				Email:  "alice@example.com",
				Status: authz.UserStatusActive,
				Role: &authz.Role{Name: "Admin", Permissions: []authz.Permission{
					{ID: "p1", Action: "read", Subject: "Dashboard"},
				}},
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "Sup3r$ecret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-1", Path: "/api/auth"})
		writeJSON(w, http.StatusOK, f.sessionBody(f.token()))
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "", Path: "/api/auth", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"message": "Logged out"}})
	})
	mux.HandleFunc("GET /api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		time.Sleep(f.refreshDelay)
		if _, err := r.Cookie("refresh_token"); err != nil || f.refreshFails {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "rt-2", Path: "/api/auth"})
		writeJSON(w, http.StatusOK, f.sessionBody(f.token()))
	})
	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, r *http.Request) {
		f.dataCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+f.token() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"value": "ok"}})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	c, err := New(server.URL)
	require.NoError(t, err)
	return c
}

func login(t *testing.T, c *Client) {
	t.Helper()
	_, err := c.Login(context.Background(), "alice@example.com", "Sup3r$ecret")
	require.NoError(t, err)
}

func TestConcurrent401sCollapseIntoOneRefresh(t *testing.T) {
	api := &fakeAPI{currentToken: "token-1", refreshDelay: 50 * time.Millisecond}
	c := newTestClient(t, api)
	login(t, c)

	// Invalidate the held token server-side; every in-flight request will
	// see a 401 at once.
	api.setToken("token-2")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = c.Get(context.Background(), "/api/data", &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int32(1), api.refreshCalls.Load(), "observers share a single refresh")
	assert.Equal(t, "token-2", c.State().AccessToken())
}

func TestRefreshFailureForcesLogout(t *testing.T) {
	api := &fakeAPI{currentToken: "token-1", refreshFails: true}
	c := newTestClient(t, api)
	loggedOut := false
	c.onLogout = func() { loggedOut = true }
	login(t, c)

	api.setToken("token-2")

	var out map[string]string
	err := c.Get(context.Background(), "/api/data", &out)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	assert.True(t, loggedOut, "logout handler fires when refresh fails")
	assert.False(t, c.State().Authenticated())
}

func TestLoginFailureDoesNotTriggerRefresh(t *testing.T) {
	api := &fakeAPI{currentToken: "token-1"}
	c := newTestClient(t, api)

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Zero(t, api.refreshCalls.Load())
	assert.False(t, c.State().Authenticated())
}

func TestSuccessfulRequestPassesThrough(t *testing.T) {
	api := &fakeAPI{currentToken: "token-1"}
	c := newTestClient(t, api)
	login(t, c)

	var out map[string]string
	require.NoError(t, c.Get(context.Background(), "/api/data", &out))
	assert.Equal(t, "ok", out["value"])
	assert.Zero(t, api.refreshCalls.Load())
	assert.Equal(t, int32(1), api.dataCalls.Load())
}

func TestStateAffordances(t *testing.T) {
	api := &fakeAPI{currentToken: "token-1"}
	c := newTestClient(t, api)

	assert.False(t, c.State().Can("dashboard:read"), "logged out is fail-closed")

	login(t, c)
	assert.True(t, c.State().Can("dashboard:read"))
	assert.False(t, c.State().Can("user:delete"))
	assert.True(t, c.State().HasRole("Admin"))
	assert.False(t, c.State().HasRole("Super Admin"))

	require.NoError(t, c.Logout(context.Background()))
	assert.False(t, c.State().Can("dashboard:read"))
}
