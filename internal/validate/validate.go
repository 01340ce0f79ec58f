// Package validate implements the validation stage of the request pipeline:
// optional params/query/body sub-schemas, parsed and coerced before the
// handler runs. Failure messages are taxonomy keys (required, invalid_email)
// so clients can localize them.
package validate

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/zubair-sh/next-admin/internal/platform/httpx"
	"github.com/zubair-sh/next-admin/internal/shared"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("passwd_upper", func(fl validator.FieldLevel) bool {
		return containsClass(fl.Field().String(), unicode.IsUpper)
	})
	_ = v.RegisterValidation("passwd_lower", func(fl validator.FieldLevel) bool {
		return containsClass(fl.Field().String(), unicode.IsLower)
	})
	_ = v.RegisterValidation("passwd_digit", func(fl validator.FieldLevel) bool {
		return containsClass(fl.Field().String(), unicode.IsDigit)
	})
	_ = v.RegisterValidation("passwd_special", func(fl validator.FieldLevel) bool {
		return containsClass(fl.Field().String(), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	})
	return v
}

func containsClass(s string, class func(rune) bool) bool {
	for _, r := range s {
		if class(r) {
			return true
		}
	}
	return false
}

// Schema declares up to three independent sub-schemas for one route. Each
// factory returns a pointer to a fresh struct; nil factories skip that part.
type Schema struct {
	Params func() any
	Query  func() any
	Body   func() any
}

type paramsContextKey struct{}
type queryContextKey struct{}
type bodyContextKey struct{}

// Middleware parses and validates the request against the schema. The first
// failing field short-circuits with 400 carrying its taxonomy key; on success
// the coerced values replace the raw ones in the request context.
func Middleware(schema Schema) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if schema.Params != nil {
				target := schema.Params()
				if err := decodeParams(r, target); err != nil {
					respondInvalid(w, r, err)
					return
				}
				if key, ok := firstViolation(target); ok {
					respondKey(w, r, key)
					return
				}
				ctx = context.WithValue(ctx, paramsContextKey{}, target)
			}

			if schema.Query != nil {
				target := schema.Query()
				if err := decodeQuery(r, target); err != nil {
					respondInvalid(w, r, err)
					return
				}
				if key, ok := firstViolation(target); ok {
					respondKey(w, r, key)
					return
				}
				ctx = context.WithValue(ctx, queryContextKey{}, target)
			}

			if schema.Body != nil {
				target := schema.Body()
				if err := httpx.DecodeJSON(r, target); err != nil {
					respondKey(w, r, "invalid_json")
					return
				}
				if key, ok := firstViolation(target); ok {
					respondKey(w, r, key)
					return
				}
				ctx = context.WithValue(ctx, bodyContextKey{}, target)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParamsFrom returns the coerced path parameters stored by Middleware.
func ParamsFrom[T any](ctx context.Context) *T {
	v, _ := ctx.Value(paramsContextKey{}).(*T)
	return v
}

// QueryFrom returns the coerced query parameters stored by Middleware.
func QueryFrom[T any](ctx context.Context) *T {
	v, _ := ctx.Value(queryContextKey{}).(*T)
	return v
}

// BodyFrom returns the coerced request body stored by Middleware.
func BodyFrom[T any](ctx context.Context) *T {
	v, _ := ctx.Value(bodyContextKey{}).(*T)
	return v
}

func respondKey(w http.ResponseWriter, r *http.Request, key string) {
	w.Header().Set("Content-Language", shared.NegotiateLocale(r).String())
	httpx.Error(w, http.StatusBadRequest, key)
}

func respondInvalid(w http.ResponseWriter, r *http.Request, err error) {
	var coercion *coercionError
	if errors.As(err, &coercion) {
		respondKey(w, r, coercion.key)
		return
	}
	respondKey(w, r, "invalid_value")
}

// firstViolation runs struct validation and maps the first failing field to
// its taxonomy key.
func firstViolation(target any) (string, bool) {
	err := validate.Struct(target)
	if err == nil {
		return "", false
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid_value", true
	}
	return taxonomyKey(fieldErrs[0]), true
}

func taxonomyKey(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "invalid_email"
	case "uuid", "uuid4":
		return "invalid_id"
	case "min":
		if fe.Kind() == reflect.String {
			return "min_length_" + fe.Param()
		}
		return "too_small"
	case "max":
		if fe.Kind() == reflect.String {
			return "max_length_" + fe.Param()
		}
		return "too_large"
	case "oneof":
		return "invalid_value"
	case "passwd_upper":
		return "password_uppercase_required"
	case "passwd_lower":
		return "password_lowercase_required"
	case "passwd_digit":
		return "password_number_required"
	case "passwd_special":
		return "password_special_char_required"
	default:
		return "invalid_value"
	}
}

type coercionError struct {
	key string
}

func (e *coercionError) Error() string { return e.key }

func decodeParams(r *http.Request, target any) error {
	values := map[string]string{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			values[key] = rctx.URLParams.Values[i]
		}
	}
	return assignFields(target, func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	})
}

func decodeQuery(r *http.Request, target any) error {
	query := r.URL.Query()
	return assignFields(target, func(name string) (string, bool) {
		if !query.Has(name) {
			return "", false
		}
		return query.Get(name), true
	})
}

// assignFields coerces string inputs onto struct fields by `form` tag.
// Supported kinds are string, int, and bool, which covers path ids, paging,
// and flags; anything richer belongs in a JSON body.
func assignFields(target any, lookup func(name string) (string, bool)) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return errors.New("validate: target must be a struct pointer")
	}
	elem := v.Elem()
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("form")
		if name == "" || name == "-" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		dst := elem.Field(i)
		switch dst.Kind() {
		case reflect.String:
			dst.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return &coercionError{key: "invalid_number"}
			}
			dst.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return &coercionError{key: "invalid_value"}
			}
			dst.SetBool(b)
		}
	}
	return nil
}
