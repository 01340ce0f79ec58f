package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/shared"
)

// Client calls the admin API. On a 401 it refreshes the session once and
// retries the request; concurrent 401s collapse into a single refresh call.
type Client struct {
	base     string
	http     *http.Client
	state    *State
	refresh  singleflight.Group
	onLogout func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport. The client installs a
// cookie jar if the given client has none, since the refresh flow depends on
// the http-only refresh cookie.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogoutHandler registers a callback fired when a session ends because
// refresh failed. UIs use it to redirect to the login screen.
func WithLogoutHandler(fn func()) Option {
	return func(c *Client) { c.onLogout = fn }
}

// New constructs a Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		state: NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("client: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// State exposes the session state for affordance checks.
func (c *Client) State() *State {
	return c.state
}

type sessionPayload struct {
	User        *authz.User `json:"user"`
	AccessToken string      `json:"accessToken"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status behind an API error, 0 otherwise.
func StatusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// Login opens a session. The refresh cookie lands in the jar; the access
// token and user go into the in-memory state.
func (c *Client) Login(ctx context.Context, email, password string) (*authz.User, error) {
	payload, err := c.call(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	var session sessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("client: decode session: %w", err)
	}
	c.state.SetSession(session.User, session.AccessToken)
	return session.User, nil
}

// Logout revokes the session server-side and clears local state.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodPost, "/api/auth/logout", nil)
	c.state.Clear()
	return err
}

// Get issues an authenticated GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Patch issues an authenticated PATCH and decodes the envelope data into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := c.authed(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// authed performs a request with the bearer token and the retry-on-401 flow.
func (c *Client) authed(ctx context.Context, method, path string, body any) ([]byte, error) {
	payload, err := c.call(ctx, method, path, body)
	if err == nil {
		return payload, nil
	}
	if StatusOf(err) != http.StatusUnauthorized || isSessionRoute(path) {
		return nil, err
	}

	if rerr := c.refreshSession(ctx); rerr != nil {
		c.state.Clear()
		if c.onLogout != nil {
			c.onLogout()
		}
		return nil, shared.ErrUnauthenticated
	}
	// One retry with the rotated token; a second 401 surfaces as-is.
	return c.call(ctx, method, path, body)
}

// refreshSession collapses concurrent refresh attempts into one round trip.
// Every waiter observes the same outcome and retries with the same rotated
// token.
func (c *Client) refreshSession(ctx context.Context) error {
	resultChan := c.refresh.DoChan("refresh", func() (any, error) {
		payload, err := c.call(ctx, http.MethodGet, "/api/auth/refresh-token", nil)
		if err != nil {
			return nil, err
		}
		var session sessionPayload
		if err := json.Unmarshal(payload, &session); err != nil {
			return nil, fmt.Errorf("client: decode session: %w", err)
		}
		c.state.SetSession(session.User, session.AccessToken)
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		return res.Err
	}
}

// call performs one HTTP round trip and unwraps the response envelope.
func (c *Client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.state.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &errBody)
		if errBody.Message == "" {
			errBody.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &apiError{Status: resp.StatusCode, Message: errBody.Message}
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("client: decode envelope: %w", err)
	}
	return envelope.Data, nil
}

// isSessionRoute reports whether a path manages the session itself. A 401
// from these endpoints means the credentials are wrong, not that the access
// token went stale, so no refresh is attempted.
func isSessionRoute(path string) bool {
	switch path {
	case "/api/auth/login", "/api/auth/refresh-token", "/api/auth/logout",
		"/api/auth/sign-up", "/api/auth/forgot-password", "/api/auth/reset-password":
		return true
	}
	return false
}
