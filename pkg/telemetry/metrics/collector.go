// Package metrics exposes the daemon's Prometheus metrics.
//
// The Collector implements mcp.Observer, so attaching it to the
// protocol handler captures every request without the handler knowing
// about Prometheus. Registry-level gauges (model counts, backend
// health) are fed by the health sweeper.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"localforge/mcpd/pkg/mcp"
)

// Collector owns the daemon's metric instruments and their registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	privacyBlocksTotal *prometheus.CounterVec
	registeredModels   *prometheus.GaugeVec
	backendHealth      *prometheus.GaugeVec
}

// NewCollector creates a collector with all instruments registered on
// the given registry, or a fresh one when nil.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpd",
			Name:      "requests_total",
			Help:      "Protocol requests handled, by method and outcome.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcpd",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, by method.",
			// Local backends answer in milliseconds; inference can
			// take tens of seconds.
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"method"}),
		privacyBlocksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpd",
			Name:      "privacy_blocks_total",
			Help:      "Requests blocked by the privacy policy, by rule.",
		}, []string{"rule"}),
		registeredModels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcpd",
			Name:      "registered_models",
			Help:      "Currently registered models, by tenant.",
		}, []string{"tenant"}),
		backendHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcpd",
			Name:      "backend_healthy",
			Help:      "Backend health per model (1 = healthy).",
		}, []string{"model_id"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.privacyBlocksTotal,
		c.registeredModels,
		c.backendHealth,
	)
	return c
}

// ObserveRequest implements mcp.Observer.
func (c *Collector) ObserveRequest(_ context.Context, rec mcp.RequestRecord) {
	c.requestsTotal.WithLabelValues(rec.Method, rec.Status).Inc()
	c.requestDuration.WithLabelValues(rec.Method).Observe(rec.Duration.Seconds())
	if rec.Rule != "" {
		c.privacyBlocksTotal.WithLabelValues(rec.Rule).Inc()
	}
}

// SetModelCount sets the registered-model gauge for one tenant. The
// admin namespace is reported as "admin".
func (c *Collector) SetModelCount(tenantID string, count int) {
	if tenantID == "" {
		tenantID = "admin"
	}
	c.registeredModels.WithLabelValues(tenantID).Set(float64(count))
}

// SetBackendHealth records one model's probe result.
func (c *Collector) SetBackendHealth(modelID string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.backendHealth.WithLabelValues(modelID).Set(v)
}

// RemoveBackend drops a model's health series after unregistration so
// stale models do not linger on dashboards.
func (c *Collector) RemoveBackend(modelID string) {
	c.backendHealth.DeleteLabelValues(modelID)
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
