// Package client is the Go API client for the admin service. It mirrors the
// server's session model: a short-lived bearer token held in memory and a
// refresh cookie managed by the transport's cookie jar.
package client

import (
	"sync"

	"github.com/zubair-sh/next-admin/internal/authz"
)

// State holds the in-memory session. All access is mutex-guarded so the
// client is safe for concurrent requests.
type State struct {
	mu          sync.RWMutex
	accessToken string
	user        *authz.User
}

// NewState returns an empty, logged-out state.
func NewState() *State {
	return &State{}
}

// SetSession stores the user and access token after login or refresh.
func (s *State) SetSession(user *authz.User, accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.accessToken = accessToken
}

// Clear wipes the session on logout or refresh failure.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.accessToken = ""
}

// AccessToken returns the current bearer token, empty when logged out.
func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// User returns the logged-in user, nil when logged out.
func (s *State) User() *authz.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a session is active.
func (s *State) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && s.user != nil
}

// Can evaluates a permission against the logged-in user, fail-closed when
// logged out. UI affordances use this; the server re-checks on every call.
func (s *State) Can(permission string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return false
	}
	return authz.Can(&authz.Principal{User: *s.user}, permission)
}

// HasRole reports whether the logged-in user holds the named role exactly.
func (s *State) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return false
	}
	return authz.HasRole(&authz.Principal{User: *s.user}, role)
}
