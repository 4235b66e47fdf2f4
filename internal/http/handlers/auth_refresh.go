package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/app"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/tenantgate/internal/security/token"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

type RefreshResponse struct {
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// NewRefreshHandler rotates the refresh credential: it consumes the refresh
// cookie (no body required), validates hash/expiry/revocation in the DB,
// mints a new access token with a fresh permission snapshot, persists a new
// refresh token linked to the old one and revokes the old one. A rejection
// here is terminal for the session; the client must log in again.
func NewRefreshHandler(c *app.Container) http.HandlerFunc {
	refreshTTL := durationOf(c.Cfg.JWT.RefreshTTL, 720*time.Hour)
	return func(w http.ResponseWriter, r *http.Request) {
		ck := c.Cfg.Auth.Cookie

		raw := ""
		if cookie, err := r.Cookie(ck.RefreshName); err == nil {
			raw = strings.TrimSpace(cookie.Value)
		}
		if raw == "" {
			httpx.WriteError(w, apperrors.ErrRefreshRejected.WithDetail("missing refresh cookie"))
			return
		}

		ctx := r.Context()

		rt, err := c.Store.GetRefreshTokenByHash(ctx, tokens.SHA256Base64URL(raw))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httpx.WriteError(w, apperrors.ErrRefreshRejected)
				return
			}
			// Transport/store trouble is NOT a rejection: the client may
			// retry without being logged out.
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		now := time.Now()
		if rt.RevokedAt != nil || !now.Before(rt.ExpiresAt) {
			httpx.WriteError(w, apperrors.ErrRefreshRejected)
			return
		}

		user, err := c.Store.GetUserByID(ctx, rt.UserID)
		if err != nil || user.Status != core.StatusActive {
			httpx.WriteError(w, apperrors.ErrRefreshRejected)
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

		newRaw, err := tokens.GenerateOpaqueToken(32)
		if err != nil {
			httpx.WriteError(w, apperrors.ErrInternal.WithCause(err))
			return
		}
		if _, err := c.Store.CreateRefreshToken(ctx, user.ID, tokens.SHA256Base64URL(newRaw), now.Add(refreshTTL), &rt.ID); err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		if err := c.Store.RevokeRefreshToken(ctx, rt.ID); err != nil {
			// The new token is already out; log and continue.
			logger.From(ctx).Warn("revoke of rotated refresh token failed",
				logger.UserID(user.ID), logger.Err(err))
		}

		// The rotated credential may carry new permissions; drop the stale
		// cached principal so the next validation resolves fresh.
		c.Principals.Invalidate(ctx, user.ID)
		metrics.RefreshRotations.Inc()

		http.SetCookie(w, BuildAuthCookie(ck.AccessName, access, ck.Domain, ck.SameSite, ck.Secure, time.Until(exp)))
		http.SetCookie(w, BuildAuthCookie(ck.RefreshName, newRaw, ck.Domain, ck.SameSite, ck.Secure, refreshTTL))

		httpx.WriteJSON(w, http.StatusOK, RefreshResponse{
			TokenType: "Bearer",
			ExpiresIn: int64(time.Until(exp).Seconds()),
		})
	}
}
