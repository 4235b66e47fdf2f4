// Package auth implements credential validation, principal resolution and
// permission checks for tenant-scoped requests.
package auth

import (
	"context"
	"time"
)

// Principal is the resolved identity attached to a request: user, tenant,
// role and the effective permission set. Principals are immutable; a refresh
// replaces the value, it never mutates in place.
type Principal struct {
	SubjectID   string    `json:"subject_id"`
	TenantID    *string   `json:"tenant_id"` // nil = cross-tenant (super admin)
	Email       string    `json:"email"`
	RoleID      string    `json:"role_id"`
	RoleLevel   int       `json:"role_level"`
	Permissions []string  `json:"permissions"`
	Status      string    `json:"status"`
	CachedAt    time.Time `json:"cached_at"`

	// ExpiresAt mirrors the credential expiry the principal was resolved
	// from, so cache TTLs can be bounded by the credential lifetime.
	ExpiresAt time.Time `json:"expires_at"`
}

// Tenant returns the tenant id with the super-admin sentinel applied:
// an empty string means "no tenant restriction".
func (p *Principal) Tenant() string {
	if p.TenantID == nil {
		return ""
	}
	return *p.TenantID
}

// IsSuperAdmin reports whether the principal is cross-tenant.
func (p *Principal) IsSuperAdmin() bool {
	return p.TenantID == nil
}

type principalCtxKey struct{}

// WithPrincipal attaches a validated principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom extracts the validated principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}
