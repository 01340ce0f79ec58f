package validate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zubair-sh/next-admin/internal/validate"
)

type idParams struct {
	ID string `form:"id" validate:"required,uuid4"`
}

type listQuery struct {
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
}

type createBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,passwd_upper,passwd_lower,passwd_digit,passwd_special"`
	Name     string `json:"name" validate:"required,max=24"`
}

func errorMessage(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.Message
}

func runSchema(schema validate.Schema, req *http.Request, handler http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.With(validate.Middleware(schema)).MethodFunc(req.Method, "/items/{id}", handler)
	r.With(validate.Middleware(schema)).MethodFunc(req.Method, "/items", handler)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestValidateBodyTaxonomyKeys(t *testing.T) {
	schema := validate.Schema{Body: func() any { return &createBody{} }}
	cases := []struct {
		name string
		body string
		key  string
	}{
		{"missing email", `{"password":"Str0ng!pass","name":"a"}`, "required"},
		{"bad email", `{"email":"nope","password":"Str0ng!pass","name":"a"}`, "invalid_email"},
		{"short password", `{"email":"a@b.co","password":"S1!a","name":"a"}`, "min_length_8"},
		{"no uppercase", `{"email":"a@b.co","password":"str0ng!pass","name":"a"}`, "password_uppercase_required"},
		{"no digit", `{"email":"a@b.co","password":"Strong!pass","name":"a"}`, "password_number_required"},
		{"no special", `{"email":"a@b.co","password":"Str0ngpass","name":"a"}`, "password_special_char_required"},
		{"name too long", `{"email":"a@b.co","password":"Str0ng!pass","name":"` + strings.Repeat("x", 25) + `"}`, "max_length_24"},
		{"not json", `not json`, "invalid_json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(tc.body))
			res := runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run on validation failure")
			})
			require.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, tc.key, errorMessage(t, res))
		})
	}
}

func TestValidateBodyReplacedWithParsedForm(t *testing.T) {
	schema := validate.Schema{Body: func() any { return &createBody{} }}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"email":"a@b.co","password":"Str0ng!pass","name":"Ada"}`))

	var got *createBody
	res := runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		got = validate.BodyFrom[createBody](r.Context())
		w.WriteHeader(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, got)
	assert.Equal(t, "a@b.co", got.Email)
	assert.Equal(t, "Ada", got.Name)
}

func TestValidateParams(t *testing.T) {
	schema := validate.Schema{Params: func() any { return &idParams{} }}

	req := httptest.NewRequest(http.MethodGet, "/items/not-a-uuid", nil)
	res := runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_id", errorMessage(t, res))

	req = httptest.NewRequest(http.MethodGet, "/items/9f2c8a14-9e7b-4a57-a6bd-1f2f64a1c2aa", nil)
	var got *idParams
	res = runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		got = validate.ParamsFrom[idParams](r.Context())
		w.WriteHeader(http.StatusOK)
	})
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, got)
	assert.Equal(t, "9f2c8a14-9e7b-4a57-a6bd-1f2f64a1c2aa", got.ID)
}

func TestValidateQueryCoercion(t *testing.T) {
	schema := validate.Schema{Query: func() any { return &listQuery{} }}

	req := httptest.NewRequest(http.MethodGet, "/items?page=2&pageSize=50&search=ada", nil)
	var got *listQuery
	res := runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		got = validate.QueryFrom[listQuery](r.Context())
		w.WriteHeader(http.StatusOK)
	})
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 50, got.PageSize)
	assert.Equal(t, "ada", got.Search)

	req = httptest.NewRequest(http.MethodGet, "/items?page=abc", nil)
	res = runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_number", errorMessage(t, res))

	req = httptest.NewRequest(http.MethodGet, "/items?pageSize=500", nil)
	res = runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "too_large", errorMessage(t, res))
}

func TestValidateContentLanguage(t *testing.T) {
	schema := validate.Schema{Body: func() any { return &createBody{} }}
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{}`))
	req.Header.Set("Accept-Language", "id-ID, en;q=0.5")
	res := runSchema(schema, req, func(w http.ResponseWriter, r *http.Request) {})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "id", res.Header().Get("Content-Language"))
}

func TestValidateEmptySchemaPassesThrough(t *testing.T) {
	called := false
	handler := validate.Middleware(validate.Schema{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, validate.BodyFrom[createBody](r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/items", nil).WithContext(context.Background()))
	assert.True(t, called)
}
