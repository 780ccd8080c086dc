package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/svc-users/models"
)

const namespace = "svc_users"

// Metrics collects application metrics on its own registry
type Metrics struct {
	registry             *prometheus.Registry
	profilesCreated      prometheus.Counter
	profilesUpdated      prometheus.Counter
	verificationFailures *prometheus.CounterVec
}

// NewMetrics registers the service collectors plus the Go and process collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		profilesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_created_total",
			Help:      "Number of user profiles created on first sight.",
		}),
		profilesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_updated_total",
			Help:      "Number of user-initiated profile updates.",
		}),
		verificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verification_failures_total",
			Help:      "Rejected bearer tokens by internal reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.profilesCreated,
		m.profilesUpdated,
		m.verificationFailures,
	)
	return m
}

// ProfileCreated records a profile_created event
func (m *Metrics) ProfileCreated(*models.UserProfile) {
	m.profilesCreated.Inc()
}

// ProfileUpdated records a profile_updated event
func (m *Metrics) ProfileUpdated(*models.UserProfile) {
	m.profilesUpdated.Inc()
}

// VerificationFailed counts a rejected token
func (m *Metrics) VerificationFailed(reason string) {
	m.verificationFailures.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
