package server

import "context"

type Principal struct {
	ID       string
	TenantID string
	RoleSlug string
	Email    string
}

type tenantCtxKey struct{}

type principalCtxKey struct{}

func withTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenant)
}

func currentTenant(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(Tenant)
	return t, ok
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// currentTenantID and currentPrincipalID feed the settlement controllers.
func currentTenantID(ctx context.Context) (string, bool) {
	t, ok := currentTenant(ctx)
	if !ok || t.ID == "" {
		return "", false
	}
	return t.ID, true
}

func currentPrincipalID(ctx context.Context) (string, bool) {
	p, ok := currentPrincipal(ctx)
	if !ok || p.ID == "" {
		return "", false
	}
	return p.ID, true
}
