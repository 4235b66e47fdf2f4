package middlewares

import (
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
)

// CSRFConfig configures the anti-forgery middleware.
type CSRFConfig struct {
	HeaderName string // Default: "X-CSRF-Token"
	CookieName string // Default: "csrf_token"
}

// WithCSRF enforces the double-submit check for cookie-based requests.
// Behavior:
//   - Bearer requests skip the check (not a cookie flow).
//   - Unsafe methods (POST, PUT, PATCH, DELETE) require header and cookie
//     to carry the same value. Read-only verbs never require a token.
func WithCSRF(cfg CSRFConfig) Middleware {
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = "csrf_token"
	}

	isUnsafe := func(m string) bool {
		switch strings.ToUpper(m) {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			return true
		default:
			return false
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			// Skip CSRF if Bearer auth is present (not a cookie flow)
			if ah := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			hdr := strings.TrimSpace(r.Header.Get(headerName))
			ck, _ := r.Cookie(cookieName)

			if hdr == "" || ck == nil || strings.TrimSpace(ck.Value) == "" || !constantTimeEqual(hdr, ck.Value) {
				apperrors.WriteError(w, apperrors.ErrCSRFRejected)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
