package authz

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context. Each
// request's context is private to that request; the principal is never shared
// between concurrent requests.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context, nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
