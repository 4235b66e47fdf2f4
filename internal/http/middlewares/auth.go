package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dropDatabas3/tenantgate/internal/auth"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/tenant"
)

// ExtractCredential pulls the raw access credential from the request:
// the access cookie is primary, Authorization: Bearer is the fallback.
func ExtractCredential(r *http.Request, accessCookie string) string {
	if ck, err := r.Cookie(accessCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return ""
}

// RequireAuth validates the access credential, binds the tenant context and
// attaches the principal to the request. The bound transaction is settled
// when the handler finishes: committed below 400, rolled back otherwise.
// Responds 401/403 on failure; binding failures are never served partially.
func RequireAuth(v *auth.Validator, accessCookie string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractCredential(r, accessCookie)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing credential"`)
				apperrors.WriteError(w, apperrors.ErrCredentialMissing)
				return
			}

			boundCtx, _, err := v.Validate(r.Context(), raw)
			if err != nil {
				apperrors.WriteError(w, mapValidationError(err))
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// Settle in a defer so a handler panic still rolls the bound
			// transaction back; the panic is rethrown for WithRecover.
			defer func() {
				if p := recover(); p != nil {
					_ = tenant.Finish(boundCtx, fmt.Errorf("panic: %v", p))
					panic(p)
				}
				var reqErr error
				if rec.status >= http.StatusBadRequest {
					reqErr = errors.New("request failed")
				}
				if err := tenant.Finish(boundCtx, reqErr); err != nil {
					// The response already went out; all we can do is log.
					logger.From(boundCtx).Error("tenant tx settle failed", logger.Err(err))
				}
			}()
			next.ServeHTTP(rec, r.WithContext(boundCtx))
		})
	}
}

func mapValidationError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		return apperrors.ErrInvalidCredential
	case errors.Is(err, auth.ErrUserNotFound):
		return apperrors.ErrUserNotFound
	case errors.Is(err, auth.ErrUserInactive):
		return apperrors.ErrUserInactive
	case errors.Is(err, auth.ErrContextBindingFailed):
		return apperrors.ErrContextBindingFailed
	default:
		return apperrors.ErrInternal.WithCause(err)
	}
}

// RequirePermission rejects with 403 before the handler runs unless the
// principal holds (resource, action). Intended for mutating endpoints; list
// endpoints use the scope filter and render denials as empty results.
func RequirePermission(resource, action string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}
			if d := auth.Check(p, resource, action); !d.Allowed {
				logger.From(r.Context()).Warn("permission denied",
					logger.Subject(p.SubjectID),
					logger.Permission(resource+":"+action))
				// The missing permission is named for diagnosability.
				apperrors.WriteError(w, apperrors.ErrPermissionDenied.
					WithDetail("requires "+resource+":"+action+":own or :all"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
