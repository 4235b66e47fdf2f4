package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/auth"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/security/password"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

type userView struct {
	ID       string  `json:"id"`
	TenantID *string `json:"tenant_id"`
	Email    string  `json:"email"`
	Status   string  `json:"status"`
	RoleID   string  `json:"role_id"`
}

func toUserView(u *core.User) userView {
	return userView{ID: u.ID, TenantID: u.TenantID, Email: u.Email, Status: u.Status, RoleID: u.RoleID}
}

// NewUsersListHandler lists users under the principal's resolved scope.
// A denied principal gets an empty list, not an error: absence of permission
// on reads manifests as absence of rows.
func NewUsersListHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			httpx.WriteError(w, apperrors.ErrUnauthorized)
			return
		}

		pred := auth.ScopeFilter(p, "users", "read")
		users, err := c.Store.ListUsers(r.Context(), pred)
		if err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}

		out := make([]userView, 0, len(users))
		for _, u := range users {
			out = append(out, toUserView(u))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

// NewUsersCreateHandler creates a user inside the principal's tenant.
// Mutations fail fast: runs behind RequirePermission("users", "create").
func NewUsersCreateHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			httpx.WriteError(w, apperrors.ErrUnauthorized)
			return
		}

		var req createUserRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" || req.RoleID == "" {
			httpx.WriteError(w, apperrors.ErrMissingFields.WithDetail("email, password and role_id are required"))
			return
		}

		hash, err := password.Hash(password.Default, req.Password)
		if err != nil {
			httpx.WriteError(w, apperrors.ErrBadRequest.WithDetail(err.Error()))
			return
		}

		// New users always land in the creator's tenant; a super admin
		// creates cross-tenant users only through dedicated tooling.
		u := &core.User{
			TenantID:     p.TenantID,
			Email:        req.Email,
			PasswordHash: hash,
			Status:       core.StatusActive,
			RoleID:       req.RoleID,
		}
		created, err := c.Store.CreateUser(r.Context(), u)
		if err != nil {
			if errors.Is(err, core.ErrConflict) {
				httpx.WriteError(w, apperrors.New(http.StatusConflict, "EMAIL_TAKEN", "A user with this email already exists."))
				return
			}
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toUserView(created))
	}
}

type userStatusRequest struct {
	Status string `json:"status"`
}

// NewUserStatusHandler changes a user's status. Suspending a user revokes
// every live refresh token and drops the cached principal, so existing
// sessions die at the next cache-window boundary instead of riding out the
// credential lifetime. Runs behind RequirePermission("users", "update").
func NewUserStatusHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			httpx.WriteError(w, apperrors.ErrBadRequest.WithDetail("user id is required"))
			return
		}

		var req userStatusRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		switch req.Status {
		case core.StatusActive, core.StatusSuspended, core.StatusPending:
		default:
			httpx.WriteError(w, apperrors.ErrBadRequest.WithDetail("status must be active, suspended or pending"))
			return
		}

		ctx := r.Context()
		if _, err := c.Store.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httpx.WriteError(w, apperrors.ErrNotFound)
				return
			}
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		if err := c.Store.SetUserStatus(ctx, id, req.Status); err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}

		if req.Status != core.StatusActive {
			if err := c.Store.RevokeUserRefreshTokens(ctx, id); err != nil {
				httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
				return
			}
		}
		c.Principals.Invalidate(ctx, id)

		w.WriteHeader(http.StatusNoContent)
	}
}
