package auth

import (
	"context"
)

// Roles carried in access tokens.
const (
	RoleOwner    = "owner"
	RoleOperator = "operator"
)

type contextKey string

// ContextKeyPrincipal is the context key for the authenticated caller
const ContextKeyPrincipal contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	// Subject is the owner id records are scoped to.
	Subject string
	Role    string
}

// IsOperator reports whether the caller may act on any owner's records.
func (p *Principal) IsOperator() bool {
	return p != nil && p.Role == RoleOperator
}

// CanAccess reports whether the caller may read or act on a record of ownerID.
func (p *Principal) CanAccess(ownerID string) bool {
	return p.IsOperator() || (p != nil && p.Subject == ownerID)
}

// WithPrincipal adds the principal to the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromContext retrieves the principal from the context
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p, ok && p != nil
}
