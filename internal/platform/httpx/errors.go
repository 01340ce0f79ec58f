package httpx

import (
	"errors"
	"net/http"

	"github.com/zubair-sh/next-admin/internal/shared"
)

// RespondError maps domain errors to HTTP statuses. Each pipeline stage owns
// one failure category; unrecognized errors surface as 400 with their message
// so business-layer conflicts stay descriptive without a dedicated status.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "Not found")
	case errors.Is(err, shared.ErrRateLimited):
		Error(w, http.StatusTooManyRequests, "Too many requests, try again later")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusBadRequest, "Invalid email or password")
	default:
		Error(w, http.StatusBadRequest, err.Error())
	}
}
