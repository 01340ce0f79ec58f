package roles

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/httpx"
	"github.com/zubair-sh/next-admin/internal/validate"
)

// Handler exposes the role management endpoints.
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
	SortBy   string `form:"sortBy" validate:"omitempty,oneof=name createdAt"`
	SortDir  string `form:"sortDir" validate:"omitempty,oneof=asc desc"`
}

type createRequest struct {
	Name          string   `json:"name" validate:"required,max=64"`
	Description   string   `json:"description" validate:"omitempty,max=255"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,uuid4"`
}

type updateRequest struct {
	Name          string   `json:"name" validate:"omitempty,max=64"`
	Description   string   `json:"description" validate:"omitempty,max=255"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,uuid4"`
}

// Routes mounts the role endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.authn.Authenticate)

	r.With(h.authn.Require(authz.PermRoleReadAll),
		validate.Middleware(validate.Schema{Query: func() any { return &listQuery{} }})).
		Get("/", h.list)
	r.With(h.authn.Require(authz.PermRoleReadAll)).
		Get("/all", h.listAll)
	r.With(h.authn.Require(authz.PermRoleReadAll)).
		Get("/export", h.exportCSV)
	r.With(h.authn.Require(authz.PermRoleCreate),
		validate.Middleware(validate.Schema{Body: func() any { return &createRequest{} }})).
		Post("/", h.create)
	r.With(h.authn.Require(authz.PermRoleRead),
		validate.Middleware(validate.Schema{Params: func() any { return &idParams{} }})).
		Get("/{id}", h.get)
	r.With(h.authn.Require(authz.PermRoleUpdate),
		validate.Middleware(validate.Schema{
			Params: func() any { return &idParams{} },
			Body:   func() any { return &updateRequest{} },
		})).
		Patch("/{id}", h.update)
	r.With(h.authn.Require(authz.PermRoleDelete),
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

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListAll(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []authz.Role{}
	}
	httpx.OK(w, roles)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	role, err := h.service.Get(r.Context(), params.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[createRequest](r.Context())
	role, err := h.service.Create(r.Context(), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	req := validate.BodyFrom[updateRequest](r.Context())
	role, err := h.service.Update(r.Context(), params.ID, req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	err := h.service.Delete(r.Context(), params.ID)
	switch {
	case errors.Is(err, ErrRoleInUse), errors.Is(err, ErrSystemRole):
		httpx.Error(w, http.StatusConflict, err.Error())
	case err != nil:
		httpx.RespondError(w, err)
	default:
		httpx.OK(w, map[string]string{"message": "Role deleted"})
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListAll(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="roles.csv"`)

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"ID", "Name", "Description", "System", "Permissions"}); err != nil {
		return
	}
	for _, role := range roles {
		keys := make([]string, 0, len(role.Permissions))
		for _, p := range role.Permissions {
			keys = append(keys, p.Key())
		}
		if err := writer.Write([]string{
			role.ID, role.Name, role.Description, strconv.FormatBool(role.IsSystem), strings.Join(keys, " "),
		}); err != nil {
			return
		}
	}
}
