package auth

import (
	"context"
	"errors"

	"github.com/dropDatabas3/tenantgate/internal/jwt"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

// Validation failures. The HTTP layer maps these onto the error catalog;
// they are never downgraded or swallowed here.
var (
	ErrInvalidCredential    = errors.New("auth: invalid credential")
	ErrUserNotFound         = errors.New("auth: user not found")
	ErrUserInactive         = errors.New("auth: user inactive")
	ErrContextBindingFailed = errors.New("auth: tenant context binding failed")
)

// PrincipalStore loads identity data on a cache miss.
type PrincipalStore interface {
	GetUserByID(ctx context.Context, id string) (*core.User, error)
	GetRoleByID(ctx context.Context, id string) (*core.Role, error)
}

// TenantBinder establishes the tenant execution context for the request.
// tenantID "" is the super-admin sentinel (no restriction). The returned
// context carries the bound database session.
type TenantBinder interface {
	Bind(ctx context.Context, tenantID string) (context.Context, error)
}

// Validator orchestrates credential verification: signature/expiry check,
// principal cache, store fallback, and mandatory tenant-context binding.
type Validator struct {
	keys   *jwt.Keystore
	issuer string
	cache  *PrincipalCache
	store  PrincipalStore
	binder TenantBinder
}

func NewValidator(keys *jwt.Keystore, issuer string, cache *PrincipalCache, store PrincipalStore, binder TenantBinder) *Validator {
	return &Validator{keys: keys, issuer: issuer, cache: cache, store: store, binder: binder}
}

// Validate verifies the raw credential and returns a context with both the
// principal and the bound tenant session attached. Binding runs on every
// call, warm cache or not, because pooled connections are reused across
// tenants between requests.
func (v *Validator) Validate(ctx context.Context, rawCredential string) (context.Context, *Principal, error) {
	claims, err := jwt.ParseEdDSA(rawCredential, v.keys, v.issuer)
	if err != nil {
		metrics.AuthValidations.WithLabelValues("invalid_credential").Inc()
		return ctx, nil, ErrInvalidCredential
	}

	p, err := v.cache.GetOrLoad(ctx, claims.Subject, func(ctx context.Context) (*Principal, error) {
		metrics.PrincipalCacheMisses.Inc()
		return v.loadPrincipal(ctx, claims)
	})
	if err != nil {
		metrics.AuthValidations.WithLabelValues("rejected").Inc()
		return ctx, nil, err
	}

	boundCtx, err := v.binder.Bind(ctx, p.Tenant())
	if err != nil {
		// Fatal: serving without a bound context would allow cross-tenant
		// reads. The request aborts here.
		logger.From(ctx).Error("tenant context binding failed",
			logger.Component("auth.validator"),
			logger.Subject(p.SubjectID),
			logger.TenantID(p.Tenant()),
			logger.Err(err))
		metrics.AuthValidations.WithLabelValues("binding_failed").Inc()
		return ctx, nil, ErrContextBindingFailed
	}

	metrics.AuthValidations.WithLabelValues("ok").Inc()
	return WithPrincipal(boundCtx, p), p, nil
}

// loadPrincipal resolves a principal from the store on a cache miss. The
// credential's embedded permission snapshot stays authoritative over the
// freshly loaded role so privileges cannot change mid-session without
// re-authentication.
func (v *Validator) loadPrincipal(ctx context.Context, claims *jwt.Claims) (*Principal, error) {
	user, err := v.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.Status != core.StatusActive {
		return nil, ErrUserInactive
	}

	role, err := v.store.GetRoleByID(ctx, user.RoleID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	perms := claims.Perms
	roleLevel := 0
	if role != nil {
		roleLevel = role.Level
		if len(perms) == 0 {
			perms = role.Permissions
		}
	}

	return &Principal{
		SubjectID:   user.ID,
		TenantID:    user.TenantID,
		Email:       user.Email,
		RoleID:      user.RoleID,
		RoleLevel:   roleLevel,
		Permissions: perms,
		Status:      user.Status,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// InvalidateSubject drops the cached principal (logout, role change).
func (v *Validator) InvalidateSubject(ctx context.Context, subjectID string) {
	v.cache.Invalidate(ctx, subjectID)
}
