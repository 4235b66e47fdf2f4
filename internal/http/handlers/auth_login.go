package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/app"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	"github.com/dropDatabas3/tenantgate/internal/security/password"
	tokens "github.com/dropDatabas3/tenantgate/internal/security/token"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// NewLoginHandler authenticates email+password and plants the credential
// cookies: an access JWT carrying the permission snapshot, and an opaque
// rotating refresh token stored by hash.
func NewLoginHandler(c *app.Container) http.HandlerFunc {
	refreshTTL := durationOf(c.Cfg.JWT.RefreshTTL, 720*time.Hour)
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			httpx.WriteError(w, apperrors.ErrMissingFields.WithDetail("email and password are required"))
			return
		}

		ctx := r.Context()

		user, err := c.Store.GetUserByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				// Same response as a bad password: no account enumeration.
				httpx.WriteError(w, apperrors.ErrInvalidLogin)
				return
			}
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		if !password.Verify(req.Password, user.PasswordHash) {
			httpx.WriteError(w, apperrors.ErrInvalidLogin)
			return
		}
		if user.Status != core.StatusActive {
			httpx.WriteError(w, apperrors.ErrUserInactive)
			return
		}

		var perms []string
		if role, err := c.Store.GetRoleByID(ctx, user.RoleID); err == nil {
			perms = role.Permissions
		}

		tid := ""
		if user.TenantID != nil {
			tid = *user.TenantID
		}
		access, exp, err := c.Issuer.IssueAccess(user.ID, tid, perms)
		if err != nil {
			httpx.WriteError(w, apperrors.ErrInternal.WithCause(err))
			return
		}

		rawRefresh, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			httpx.WriteError(w, apperrors.ErrInternal.WithCause(err))
			return
		}
		if _, err := c.Store.CreateRefreshToken(ctx, user.ID, tokens.SHA256Base64URL(rawRefresh), time.Now().Add(refreshTTL), nil); err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}

		ck := c.Cfg.Auth.Cookie
		http.SetCookie(w, BuildAuthCookie(ck.AccessName, access, ck.Domain, ck.SameSite, ck.Secure, time.Until(exp)))
		http.SetCookie(w, BuildAuthCookie(ck.RefreshName, rawRefresh, ck.Domain, ck.SameSite, ck.Secure, refreshTTL))

		logger.From(ctx).Info("login ok", logger.UserID(user.ID), logger.TenantID(tid))
		httpx.WriteJSON(w, http.StatusOK, LoginResponse{
			TokenType: "Bearer",
			ExpiresIn: int64(time.Until(exp).Seconds()),
		})
	}
}

func durationOf(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
