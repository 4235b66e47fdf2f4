package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// parseSameSite converts the config string to http.SameSite.
// Accepts: "", "lax", "strict", "none" (case-insensitive). Default: Lax.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// Modern browsers require Secure with SameSite=None. Not forced here
		// to keep http://localhost working; BuildAuthCookie warns instead.
		return http.SameSiteNoneMode
	default:
		logger.L().Warn("unknown SameSite value, using Lax", logger.String("samesite", s))
		return http.SameSiteLaxMode
	}
}

// BuildAuthCookie builds an HttpOnly credential cookie with security flags.
func BuildAuthCookie(name, value, domain, sameSite string, secure bool, ttl time.Duration) *http.Cookie {
	ss := parseSameSite(sameSite)
	if ss == http.SameSiteNoneMode && !secure {
		logger.L().Warn("SameSite=None without Secure; browsers may reject the cookie")
	}
	exp := time.Now().UTC().Add(ttl)

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: ss,
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}

// BuildDeletionCookie returns a cookie that erases the credential from the
// browser. Same name/domain/samesite/secure so the user-agent overwrites it.
func BuildDeletionCookie(name, domain, sameSite string, secure bool) *http.Cookie {
	ss := parseSameSite(sameSite)
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   secure,
		HttpOnly: true,
		SameSite: ss,
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}
