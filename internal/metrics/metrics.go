// Package metrics provides Prometheus metrics for the orchestrator,
// exported via an HTTP endpoint in Prometheus format.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds orchestrator metrics and provides helper methods for
// recording each stage/call.
type Registry struct {
	registry prometheus.Registerer

	stageDuration    prometheus.HistogramVec
	httpCallDuration prometheus.HistogramVec
	httpCallsTotal   prometheus.CounterVec
	runsTotal        prometheus.CounterVec

	inFlightHTTPCalls prometheus.GaugeVec
	queueDepth        prometheus.GaugeVec
	jobsByStatus      prometheus.GaugeVec

	mu sync.RWMutex
}

// NewRegistry creates and registers orchestrator metrics using the global
// Prometheus registry. It panics if any metric fails to register.
func NewRegistry() *Registry {
	return NewRegistryWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRegistryWithRegisterer creates and registers orchestrator metrics
// with a custom registerer, mainly for tests.
func NewRegistryWithRegisterer(registerer prometheus.Registerer) *Registry {
	m := &Registry{registry: registerer}

	m.stageDuration = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_stage_duration_seconds",
			Help:    "OrchestratorCore stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	m.registry.MustRegister(&m.stageDuration)

	m.httpCallDuration = *prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adr_http_call_duration_seconds",
			Help:    "Duration of outbound calls to the ADR service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	m.registry.MustRegister(&m.httpCallDuration)

	m.httpCallsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adr_http_calls_total",
			Help: "Total outbound calls to the ADR service by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)
	m.registry.MustRegister(&m.httpCallsTotal)

	m.runsTotal = *prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestration_runs_total",
			Help: "Total OrchestrationRun completions by terminal status",
		},
		[]string{"status"},
	)
	m.registry.MustRegister(&m.runsTotal)

	m.inFlightHTTPCalls = *prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adr_http_calls_in_flight",
			Help: "Concurrent outbound calls to the ADR service",
		},
		[]string{"endpoint"},
	)
	m.registry.MustRegister(&m.inFlightHTTPCalls)

	m.queueDepth = *prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestration_queue_depth",
			Help: "1 if an orchestration run is currently active, 0 otherwise",
		},
		[]string{"queue"},
	)
	m.registry.MustRegister(&m.queueDepth)

	m.jobsByStatus = *prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_by_status",
			Help: "Current job count by status",
		},
		[]string{"status"},
	)
	m.registry.MustRegister(&m.jobsByStatus)

	return m
}

// ObserveStage records one stage's duration.
func (m *Registry) ObserveStage(stage string, seconds float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveHTTPCall records one ADR call's duration and outcome.
func (m *Registry) ObserveHTTPCall(endpoint, outcome string, seconds float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.httpCallDuration.WithLabelValues(endpoint).Observe(seconds)
	m.httpCallsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// IncInFlight/DecInFlight track concurrent ADR calls per endpoint.
func (m *Registry) IncInFlight(endpoint string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.inFlightHTTPCalls.WithLabelValues(endpoint).Inc()
}

func (m *Registry) DecInFlight(endpoint string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.inFlightHTTPCalls.WithLabelValues(endpoint).Dec()
}

// RecordRunCompletion increments the terminal-status counter for one
// OrchestrationRun.
func (m *Registry) RecordRunCompletion(status string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.runsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth reflects whether OrchestrationQueue currently holds an
// active run (1) or is idle (0).
func (m *Registry) SetQueueDepth(running bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	depth := 0.0
	if running {
		depth = 1.0
	}
	m.queueDepth.WithLabelValues("orchestration").Set(depth)
}

// SetJobsByStatus sets the current gauge value for one job status bucket.
func (m *Registry) SetJobsByStatus(status string, count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.jobsByStatus.WithLabelValues(status).Set(float64(count))
}

// Handler returns an HTTP handler serving this registry in Prometheus
// exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry.(prometheus.Gatherer), promhttp.HandlerOpts{})
}
