package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// ProvisioningSteps counts workflow steps by name and outcome
	ProvisioningSteps *prometheus.CounterVec
	// WorkflowDuration tracks end-to-end provisioning duration
	WorkflowDuration *prometheus.HistogramVec
	// TokenRefreshes counts token refresh attempts by outcome
	TokenRefreshes *prometheus.CounterVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ProvisioningSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provisioning_steps_total",
				Help:      "Total number of provisioning workflow steps",
			},
			[]string{"step", "outcome"},
		),
		WorkflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "End-to-end provisioning workflow duration",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of token refresh attempts",
			},
			[]string{"outcome"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.ProvisioningSteps,
		m.WorkflowDuration,
		m.TokenRefreshes,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordStep records one provisioning workflow step outcome
func (m *Metrics) RecordStep(step, outcome string) {
	m.ProvisioningSteps.WithLabelValues(step, outcome).Inc()
}

// RecordWorkflowDuration records an end-to-end workflow run
func (m *Metrics) RecordWorkflowDuration(outcome string, durationSeconds float64) {
	m.WorkflowDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordTokenRefresh records a token refresh attempt
func (m *Metrics) RecordTokenRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}
