package handlers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/tenantgate/internal/app"
	jwtx "github.com/dropDatabas3/tenantgate/internal/jwt"
	tokens "github.com/dropDatabas3/tenantgate/internal/security/token"
)

// NewLogoutHandler revokes the refresh credential server-side, drops the
// cached principal and instructs the client to discard both cookies.
// Idempotent: logging out twice is fine.
func NewLogoutHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ck := c.Cfg.Auth.Cookie

		if cookie, err := r.Cookie(ck.RefreshName); err == nil {
			raw := strings.TrimSpace(cookie.Value)
			if raw != "" {
				if rt, err := c.Store.GetRefreshTokenByHash(ctx, tokens.SHA256Base64URL(raw)); err == nil {
					_ = c.Store.RevokeRefreshToken(ctx, rt.ID)
					c.Principals.Invalidate(ctx, rt.UserID)
				}
			}
		}

		// If an access credential is present, invalidate its subject too, so
		// the cached principal cannot outlive the logout.
		if raw := accessCredential(r, ck.AccessName); raw != "" {
			if claims, err := jwtx.ParseEdDSA(raw, c.Keys, c.Cfg.JWT.Issuer); err == nil {
				c.Principals.Invalidate(ctx, claims.Subject)
			}
		}

		http.SetCookie(w, BuildDeletionCookie(ck.AccessName, ck.Domain, ck.SameSite, ck.Secure))
		http.SetCookie(w, BuildDeletionCookie(ck.RefreshName, ck.Domain, ck.SameSite, ck.Secure))

		w.WriteHeader(http.StatusNoContent)
	}
}

func accessCredential(r *http.Request, accessCookie string) string {
	if ck, err := r.Cookie(accessCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return ""
}
