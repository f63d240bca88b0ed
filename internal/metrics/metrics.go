// Package metrics bundles the Prometheus collectors the fetcher reports
// into. All methods are nil-safe so instrumentation can be switched off by
// passing a nil bundle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors on a dedicated registry.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	HandshakesTotal   *prometheus.CounterVec
	FetchesTotal      *prometheus.CounterVec
	SessionsLive      prometheus.Gauge
	PoolFallbackTotal prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// New constructs and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asinfetch_requests_total",
			Help: "Total HTTP requests issued, by request shape.",
		},
		[]string{"shape"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asinfetch_request_duration_seconds",
			Help:    "HTTP request latency, by request shape.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"shape"},
	)
	handshakes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asinfetch_handshakes_total",
			Help: "Session handshake attempts by outcome.",
		},
		[]string{"outcome"},
	)
	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asinfetch_fetches_total",
			Help: "Product fetches by outcome.",
		},
		[]string{"outcome"},
	)
	sessionsLive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "asinfetch_sessions_live",
			Help: "Sessions currently alive (pooled or lent out).",
		},
	)
	poolFallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asinfetch_pool_fallback_total",
			Help: "Acquire timeouts that fell back to an ephemeral session.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asinfetch_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(
		requests, requestDuration, handshakes, fetches,
		sessionsLive, poolFallback, errorsTotal,
	)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		HandshakesTotal:   handshakes,
		FetchesTotal:      fetches,
		SessionsLive:      sessionsLive,
		PoolFallbackTotal: poolFallback,
		ErrorsTotal:       errorsTotal,
	}
}

// ObserveRequest records one HTTP request and its latency.
func (m *Metrics) ObserveRequest(shape string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(shape).Inc()
	m.RequestDuration.WithLabelValues(shape).Observe(d.Seconds())
}

// IncHandshake counts a handshake attempt by outcome.
func (m *Metrics) IncHandshake(outcome string) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(outcome).Inc()
}

// IncFetch counts a product fetch by outcome.
func (m *Metrics) IncFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// SessionOpened bumps the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsLive.Inc()
}

// SessionClosed drops the live session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsLive.Dec()
}

// IncPoolFallback counts an ephemeral-session fallback.
func (m *Metrics) IncPoolFallback() {
	if m == nil {
		return
	}
	m.PoolFallbackTotal.Inc()
}

// IncError counts an error by type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
