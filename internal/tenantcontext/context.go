// Package tenantcontext propagates the authenticated principal through a
// request context. The principal is supplied by the external authentication
// collaborator; no package in this repository issues or checks credentials.
package tenantcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Role values recognized on principals.
const (
	RoleAgent        = "agent"
	RoleCompanyAdmin = "company_admin"
	RoleSuperAdmin   = "super_admin"
)

// Principal is the verified identity attached to every request.
type Principal struct {
	TenantID snowflake.ID
	AgentID  snowflake.ID
	Role     string
}

// IsAdmin reports whether the principal may perform administrative actions.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleCompanyAdmin || p.Role == RoleSuperAdmin
}

type contextKey string

const principalKey contextKey = "tenant_principal"

// WithPrincipal attaches the principal to the context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext extracts the principal, reporting whether one exists.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	if !ok || principal.TenantID == 0 {
		return Principal{}, false
	}
	return principal, true
}
