package handlers

import (
	"net/http"

	"github.com/dropDatabas3/tenantgate/internal/app"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
	apperrors "github.com/dropDatabas3/tenantgate/internal/http/errors"
)

type cacheStatsResponse struct {
	Driver string `json:"driver"`
	Keys   int64  `json:"keys"`
	Hits   int64  `json:"hits"`
	Misses int64  `json:"misses"`
}

// NewCacheStatsHandler exposes cache counters for operators. Mounted behind
// RequirePermission("admin", "read").
func NewCacheStatsHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := c.Cache.Stats(r.Context())
		if err != nil {
			httpx.WriteError(w, apperrors.ErrStoreUnavailable.WithCause(err))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, cacheStatsResponse{
			Driver: st.Driver,
			Keys:   st.Keys,
			Hits:   st.Hits,
			Misses: st.Misses,
		})
	}
}
