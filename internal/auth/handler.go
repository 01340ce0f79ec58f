package auth

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/httpx"
	"github.com/zubair-sh/next-admin/internal/shared"
	"github.com/zubair-sh/next-admin/internal/validate"
)

const (
	refreshCookieName = "refresh_token"
	// authFlagCookieName is readable by browser clients so they can tell a
	// session exists without access to the http-only refresh cookie.
	authFlagCookieName = "is_authenticated"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	service       *Service
	authn         authz.Middleware
	cookiePath    string
	secureCookies bool
}

// NewHandler constructs a Handler. cookiePath scopes the refresh cookie to
// the auth routes so it is not replayed to every API call.
func NewHandler(service *Service, authn authz.Middleware, cookiePath string, secureCookies bool) *Handler {
	if cookiePath == "" {
		cookiePath = "/api/auth"
	}
	return &Handler{service: service, authn: authn, cookiePath: cookiePath, secureCookies: secureCookies}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,passwd_upper,passwd_lower,passwd_digit,passwd_special"`
	FirstName string `json:"firstName" validate:"required,max=24"`
	LastName  string `json:"lastName" validate:"required,max=24"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,passwd_upper,passwd_lower,passwd_digit,passwd_special"`
}

type profileUpdateRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"omitempty,max=24"`
	LastName  string `json:"lastName" validate:"omitempty,max=24"`
	Password  string `json:"password" validate:"omitempty,min=8,passwd_upper,passwd_lower,passwd_digit,passwd_special"`
}

type sessionResponse struct {
	User        *authz.User `json:"user"`
	AccessToken string      `json:"accessToken"`
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.With(validate.Middleware(validate.Schema{Body: func() any { return &loginRequest{} }})).
		Post("/login", h.login)
	r.Get("/refresh-token", h.refresh)
	r.Post("/logout", h.logout)
	r.With(validate.Middleware(validate.Schema{Body: func() any { return &signUpRequest{} }})).
		Post("/sign-up", h.signUp)
	r.With(validate.Middleware(validate.Schema{Body: func() any { return &forgotPasswordRequest{} }})).
		Post("/forgot-password", h.forgotPassword)
	r.With(validate.Middleware(validate.Schema{Body: func() any { return &resetPasswordRequest{} }})).
		Post("/reset-password", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.authn.Authenticate)
		r.Get("/profile", h.profile)
		r.With(validate.Middleware(validate.Schema{Body: func() any { return &profileUpdateRequest{} }})).
			Patch("/profile", h.updateProfile)
		r.Post("/delete-account", h.deleteAccount)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[loginRequest](r.Context())
	session, err := h.service.Login(r.Context(), clientKey(r), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.setSessionCookies(w, session.RefreshToken)
	httpx.OK(w, sessionResponse{User: &session.Principal.User, AccessToken: session.AccessToken})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	session, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.clearSessionCookies(w)
		httpx.RespondError(w, err)
		return
	}
	h.setSessionCookies(w, session.RefreshToken)
	httpx.OK(w, sessionResponse{User: &session.Principal.User, AccessToken: session.AccessToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		_ = h.service.Logout(r.Context(), cookie.Value)
	}
	h.clearSessionCookies(w)
	httpx.OK(w, map[string]string{"message": "Logged out"})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[signUpRequest](r.Context())
	user, err := h.service.SignUp(r.Context(), SignUpRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, user)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[forgotPasswordRequest](r.Context())
	_ = h.service.ForgotPassword(r.Context(), req.Email)
	httpx.OK(w, map[string]string{"message": "If the account exists, a reset link has been sent"})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[resetPasswordRequest](r.Context())
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "Password updated"})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	httpx.OK(w, principal.User)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	req := validate.BodyFrom[profileUpdateRequest](r.Context())
	user, err := h.service.UpdateProfile(r.Context(), principal.User.ID, ProfileUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), principal.User.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.clearSessionCookies(w)
	httpx.OK(w, map[string]string{"message": "Account deleted"})
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     h.cookiePath,
		MaxAge:   int(h.service.refresh.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     authFlagCookieName,
		Value:    "true",
		Path:     "/",
		MaxAge:   int(h.service.refresh.TTL() / time.Second),
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     h.cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     authFlagCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// clientKey derives the rate-limit key from the request. RealIP middleware
// runs upstream, so RemoteAddr already reflects the trusted client address.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return ""
	}
	return host
}
