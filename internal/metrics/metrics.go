package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// SyncCycles counts sync cycles by outcome
	SyncCycles *prometheus.CounterVec
	// NewTransactions counts transactions newly ingested into the store
	NewTransactions prometheus.Counter
	// TokenRefreshes counts token refresh attempts by result
	TokenRefreshes *prometheus.CounterVec
	// APIRequestLatency tracks banking API call latency by outcome
	APIRequestLatency *prometheus.HistogramVec
	// ConsecutiveErrors tracks the current consecutive error streak
	ConsecutiveErrors prometheus.Gauge
	// StoredTransactions tracks the total record count in the dedup store
	StoredTransactions prometheus.Gauge
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SyncCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_cycles_total",
				Help:      "Sync cycles by outcome",
			},
			[]string{"status"},
		),
		NewTransactions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "new_transactions_total",
				Help:      "Transactions newly ingested into the store",
			},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "OAuth token refresh attempts by result",
			},
			[]string{"result"},
		),
		APIRequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_latency_seconds",
				Help:      "Banking API request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),
		ConsecutiveErrors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consecutive_errors",
				Help:      "Current consecutive sync error streak",
			},
		),
		StoredTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stored_transactions",
				Help:      "Total transaction records in the dedup store",
			},
		),
	}

	registry.MustRegister(
		m.SyncCycles,
		m.NewTransactions,
		m.TokenRefreshes,
		m.APIRequestLatency,
		m.ConsecutiveErrors,
		m.StoredTransactions,
	)

	return m
}

// RecordCycle records a completed sync cycle outcome
func (m *Metrics) RecordCycle(status string) {
	m.SyncCycles.WithLabelValues(status).Inc()
}

// RecordNewTransactions adds newly ingested records to the counter
func (m *Metrics) RecordNewTransactions(n int) {
	if n > 0 {
		m.NewTransactions.Add(float64(n))
	}
}

// RecordTokenRefresh records a token refresh attempt result
func (m *Metrics) RecordTokenRefresh(result string) {
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry, for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
