package users

import (
	"encoding/csv"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/platform/httpx"
	"github.com/zubair-sh/next-admin/internal/validate"
)

// Handler exposes the user management endpoints.
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
	Status   string `form:"status" validate:"omitempty,oneof=active inactive deleted"`
	RoleID   string `form:"roleId" validate:"omitempty,uuid4"`
	SortBy   string `form:"sortBy" validate:"omitempty,oneof=email fullName status createdAt"`
	SortDir  string `form:"sortDir" validate:"omitempty,oneof=asc desc"`
}

type createRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,passwd_upper,passwd_lower,passwd_digit,passwd_special"`
	FirstName string `json:"firstName" validate:"required,max=24"`
	LastName  string `json:"lastName" validate:"required,max=24"`
	RoleID    string `json:"roleId" validate:"required,uuid4"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

type updateRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"omitempty,max=24"`
	LastName  string `json:"lastName" validate:"omitempty,max=24"`
	RoleID    string `json:"roleId" validate:"omitempty,uuid4"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive deleted"`
}

// Routes mounts the user endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.authn.Authenticate)

	r.With(h.authn.Require(authz.PermUserReadAll),
		validate.Middleware(validate.Schema{Query: func() any { return &listQuery{} }})).
		Get("/", h.list)
	r.With(h.authn.Require(authz.PermUserReadAll)).
		Get("/export", h.exportCSV)
	r.With(h.authn.Require(authz.PermUserCreate),
		validate.Middleware(validate.Schema{Body: func() any { return &createRequest{} }})).
		Post("/", h.create)
	r.With(h.authn.Require(authz.PermUserRead),
		validate.Middleware(validate.Schema{Params: func() any { return &idParams{} }})).
		Get("/{id}", h.get)
	r.With(h.authn.Require(authz.PermUserUpdate),
		validate.Middleware(validate.Schema{
			Params: func() any { return &idParams{} },
			Body:   func() any { return &updateRequest{} },
		})).
		Patch("/{id}", h.update)
	r.With(h.authn.Require(authz.PermUserDelete),
		validate.Middleware(validate.Schema{Params: func() any { return &idParams{} }})).
		Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := validate.QueryFrom[listQuery](r.Context())
	result, err := h.service.List(r.Context(), ListFilters{
		Page:     q.Page,
		PageSize: q.PageSize,
		Search:   q.Search,
		Status:   q.Status,
		RoleID:   q.RoleID,
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
	user, err := h.service.Get(r.Context(), params.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req := validate.BodyFrom[createRequest](r.Context())
	user, err := h.service.Create(r.Context(), CreateInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleID:    req.RoleID,
		Status:    authz.UserStatus(req.Status),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, user)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	req := validate.BodyFrom[updateRequest](r.Context())
	user, err := h.service.Update(r.Context(), params.ID, UpdateInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleID:    req.RoleID,
		Status:    authz.UserStatus(req.Status),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	params := validate.ParamsFrom[idParams](r.Context())
	if err := h.service.Delete(r.Context(), params.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"message": "User deleted"})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ExportAll(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"ID", "Email", "Full Name", "Status", "Role", "Created At"}); err != nil {
		return
	}
	for _, user := range items {
		roleName := ""
		if user.Role != nil {
			roleName = user.Role.Name
		}
		if err := writer.Write([]string{
			user.ID, user.Email, user.FullName, string(user.Status), roleName,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		}); err != nil {
			return
		}
	}
}
