package handlers

import (
	"net/http"

	"github.com/dropDatabas3/tenantgate/internal/app"
	httpx "github.com/dropDatabas3/tenantgate/internal/http/helpers"
)

// NewReadyzHandler reports readiness: DB and cache must answer.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checks := map[string]string{"db": "ok", "cache": "ok"}
		status := http.StatusOK

		if err := c.Store.Ping(ctx); err != nil {
			checks["db"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := c.Cache.Ping(ctx); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, status, checks)
	}
}
