package handlers

import (
	"net/http"
	"time"

	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	tokens "github.com/dropDatabas3/tenantgate/internal/security/token"
)

// NewCSRFHandler issues the anti-forgery token: the value travels in the
// X-CSRF-Token response header and in a matching cookie (double submit).
// The cookie is deliberately NOT HttpOnly so the frontend can read and echo
// it; SameSite=Lax, short TTL.
func NewCSRFHandler(cookieName string, secure bool, ttl time.Duration) http.HandlerFunc {
	if cookieName == "" {
		cookieName = "csrf_token"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := tokens.GenerateHexToken(32)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrInternal.WithCause(err))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    tok,
			Path:     "/",
			HttpOnly: false,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(ttl).UTC(),
		})

		w.Header().Set("X-CSRF-Token", tok)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.WriteHeader(http.StatusNoContent)
	}
}
