package handlers

import (
	"net/http"

	"github.com/dropDatabas3/tenantgate/internal/app"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

type roleView struct {
	ID          string   `json:"id"`
	TenantID    *string  `json:"tenant_id"`
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

func toRoleView(r *core.Role) roleView {
	return roleView{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Level: r.Level, Permissions: r.Permissions}
}

// NewRolesListHandler lists the roles visible to the bound tenant context.
// Row-level security does the filtering; the handler adds nothing on top.
func NewRolesListHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roles, err := c.Store.ListRoles(r.Context())
		if err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		out := make([]roleView, 0, len(roles))
		for _, role := range roles {
			out = append(out, toRoleView(role))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"roles": out})
	}
}
