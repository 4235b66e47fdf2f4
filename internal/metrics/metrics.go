// Package metrics defines the Prometheus instruments for the auth core.
// They live in a standalone package to avoid import cycles between the auth
// and HTTP packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AuthValidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_validations_total",
		Help: "Credential validations by outcome (ok, invalid_credential, rejected, binding_failed)",
	}, []string{"outcome"})

	PrincipalCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "principal_cache_misses_total",
		Help: "Principal cache misses that required a store lookup",
	})

	TenantBindings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_context_bindings_total",
		Help: "Tenant context bindings by outcome (ok, error)",
	}, []string{"outcome"})

	RefreshRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refresh_rotations_total",
		Help: "Server-side refresh token rotations",
	})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"method", "status"})
)

// Register registers every instrument on the given registry (default if nil).
// Re-registration is tolerated so tests can call it repeatedly.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		AuthValidations,
		PrincipalCacheMisses,
		TenantBindings,
		RefreshRotations,
		HTTPDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
