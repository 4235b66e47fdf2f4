package handlers

import (
	"net/http"

	"github.com/dropDatabas3/tenantgate/internal/auth"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
)

type meResponse struct {
	SubjectID   string   `json:"subject_id"`
	TenantID    *string  `json:"tenant_id"`
	Email       string   `json:"email"`
	RoleID      string   `json:"role_id"`
	RoleLevel   int      `json:"role_level"`
	Permissions []string `json:"permissions"`
}

// NewMeHandler returns the validated principal's safe projection.
// Runs behind RequireAuth; no secrets ever leave this endpoint.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			httpx.WriteError(w, apperrors.ErrUnauthorized)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, meResponse{
			SubjectID:   p.SubjectID,
			TenantID:    p.TenantID,
			Email:       p.Email,
			RoleID:      p.RoleID,
			RoleLevel:   p.RoleLevel,
			Permissions: p.Permissions,
		})
	}
}
