package http

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/http/handlers"
	"github.com/dropDatabas3/tenantgate/internal/http/middlewares"
)

// NewRouter assembles the HTTP surface.
//
// Login and refresh sit outside the CSRF fence: they run before a session
// exists and are protected by SameSite cookies. Logout and everything else
// that mutates state under an established session goes through the
// double-submit check.
func NewRouter(c *app.Container) stdhttp.Handler {
	ck := c.Cfg.Auth.Cookie

	r := chi.NewRouter()
	r.Use(middlewares.WithRecover())
	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())

	r.Get("/healthz", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", handlers.NewReadyzHandler(c))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handlers.NewLoginHandler(c))
		r.Post("/refresh", handlers.NewRefreshHandler(c))
		r.With(middlewares.WithCSRF(middlewares.CSRFConfig{CookieName: ck.CSRFName})).
			Post("/logout", handlers.NewLogoutHandler(c))
		r.Get("/csrf", handlers.NewCSRFHandler(ck.CSRFName, ck.Secure, 30*time.Minute))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAuth(c.Validator, ck.AccessName))
			r.Get("/me", handlers.NewMeHandler())
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(middlewares.RequireAuth(c.Validator, ck.AccessName))
		r.Use(middlewares.WithCSRF(middlewares.CSRFConfig{CookieName: ck.CSRFName}))

		r.Get("/", handlers.NewUsersListHandler(c))
		r.With(middlewares.RequirePermission("users", "create")).
			Post("/", handlers.NewUsersCreateHandler(c))
		r.With(middlewares.RequirePermission("users", "update")).
			Patch("/{id}/status", handlers.NewUserStatusHandler(c))
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(middlewares.RequireAuth(c.Validator, ck.AccessName))
		r.Get("/", handlers.NewRolesListHandler(c))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.RequireAuth(c.Validator, ck.AccessName))
		r.With(middlewares.RequirePermission("admin", "read")).
			Get("/cache", handlers.NewCacheStatsHandler(c))
	})

	return r
}
