package permissions

import (
	"encoding/csv"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/httpx"
	"github.com/zubair-sh/next-admin/internal/validate"
)

// Handler exposes the permission management endpoints.
type Handler struct {
	service *Service
	authn   authz.Middleware
}

// NewHandler builds a Handler.
func NewHandler(service *Service, authn authz.Middleware) *Handler {
	return &Handler{service: service, authn: authn}
}

type idParams struct {
	ID string `form:"id" validate:"required,uuid4"`
}

type listQuery struct {
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	SortBy   string `form:"sortBy" validate:"omitempty,oneof=action subject createdAt"`
	SortDir  string `form:"sortDir" validate:"omitempty,oneof=asc desc"`
}

type createRequest struct {
	Action      string `json:"action" validate:"required,max=64"`
	Subject     string `json:"subject" validate:"required,max=64"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

type updateRequest struct {
	Action      string `json:"action" validate:"omitempty,max=64"`
	Subject     string `json:"subject" validate:"omitempty,max=64"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

// Routes mounts the permission endpoints on r. Every route runs the full
// pipeline: authenticate, authorize, validate, handle.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.authn.Authenticate)

	r.With(h.authn.Require(authz.PermPermissionReadAll),
		validate.Middleware(validate.Schema{Query: func() any { return &listQuery{} }})).
		Get("/", h.list)
	r.With(h.authn.Require(authz.PermPermissionReadAll)).
		Get("/export", h.exportCSV)
	r.With(h.authn.Require(authz.PermPermissionCreate),
		validate.Middleware(validate.Schema{Body: func() any { return &createRequest{} }})).
		Post("/", h.create)
	r.With(h.authn.Require(authz.PermPermissionRead),
		validate.Middleware(validate.Schema{Params: func() any { return &idParams{} }})).
		Get("/{id}", h.get)
	r.With(h.authn.Require(authz.PermPermissionUpdate),
		validate.Middleware(validate.Schema{
			Params: func() any { return &idParams{} },
			Body:   func() any { return &updateRequest{} },
		})).
		Patch("/{id}", h.update)
	r.With(h.authn.Require(authz.PermPermissionDelete),
		validate.Middleware(validate.Schema{Params: func() any { return &idParams{} }})).
		Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := validate.QueryFrom[listQuery](r.Context())
	result, err := h.service.List(r.Context(), ListFilters{
		Page:     q.Page,
		PageSize: q.PageSize,
		Search:   q.Search,
		SortBy:   q.SortBy,
		SortDir:  q.SortDir,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	permission, err := h.service.Get(r.Context(), params.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, permission)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[createRequest](r.Context())
	permission, err := h.service.Create(r.Context(), req.Action, req.Subject, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, permission)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	req := validate.BodyFrom[updateRequest](r.Context())
	permission, err := h.service.Update(r.Context(), params.ID, req.Action, req.Subject, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, permission)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	if err := h.service.Delete(r.Context(), params.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "Permission deleted"})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ExportAll(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="permissions.csv"`)

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"ID", "Action", "Subject", "Description", "Created At"}); err != nil {
		return
	}
	for _, p := range items {
		if err := writer.Write([]string{
			p.ID, p.Action, p.Subject, p.Description, p.CreatedAt.Format("2006-01-02 15:04:05"),
		}); err != nil {
			return
		}
	}
}
