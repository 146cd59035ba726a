// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Reconciler metrics
	TransactionsSubmitted prometheus.Counter
	ReconcileTotal        *prometheus.CounterVec
	SettleTotal           *prometheus.CounterVec
	SweepRuns             *prometheus.CounterVec
	LastSuccessfulSweep   prometheus.Gauge

	// Ledger metrics
	LedgerCallLatency *prometheus.HistogramVec
	LedgerErrors      *prometheus.CounterVec
	LedgerCacheHits   prometheus.Counter

	// Stats metrics
	TradesRecorded *prometheus.CounterVec
	ArchiveErrors  prometheus.Counter

	// Watch metrics
	Evaluations   prometheus.Counter
	TriggersFired *prometheus.CounterVec

	// Intake metrics
	EventsConsumed *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered on reg.
// A nil reg uses a fresh private registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "wallet_tracker"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		// Reconciler metrics
		TransactionsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions recorded as pending",
		}),
		ReconcileTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "reconcile_total",
			Help:      "Total number of reconciliations by observed network state",
		}, []string{"network_state"}),
		SettleTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "settle_total",
			Help:      "Total number of persisted status transitions by target status",
		}, []string{"status"}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "sweep_runs_total",
			Help:      "Total number of pending sweeps by result",
		}, []string{"result"}),
		LastSuccessfulSweep: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last completed pending sweep",
		}),

		// Ledger metrics
		LedgerCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Ledger RPC call latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		LedgerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "errors_total",
			Help:      "Total number of failed ledger calls by method",
		}, []string{"method"}),
		LedgerCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cache_hits_total",
			Help:      "Total number of signature statuses served from the terminal-status cache",
		}),

		// Stats metrics
		TradesRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "trades_recorded_total",
			Help:      "Total number of trades recorded by outcome",
		}, []string{"success"}),
		ArchiveErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "archive_errors_total",
			Help:      "Total number of trade entries that could not be archived",
		}),

		// Watch metrics
		Evaluations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "evaluations_total",
			Help:      "Total number of watch evaluations started",
		}),
		TriggersFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "triggers_recorded_total",
			Help:      "Total number of persisted alert firings by source",
		}, []string{"source"}),

		// Intake metrics
		EventsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Total number of consumed events by kind and result",
		}, []string{"kind", "result"}),

		// HTTP metrics
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordSubmitted increments the submitted transactions counter.
func (m *Metrics) RecordSubmitted() {
	if m == nil {
		return
	}
	m.TransactionsSubmitted.Inc()
}

// RecordReconcile records the network state observed by a reconciliation.
func (m *Metrics) RecordReconcile(state string) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(state).Inc()
}

// RecordSettle records a persisted status transition.
func (m *Metrics) RecordSettle(status string) {
	if m == nil {
		return
	}
	m.SettleTotal.WithLabelValues(status).Inc()
}

// RecordSweep records a pending sweep run.
func (m *Metrics) RecordSweep(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepRuns.WithLabelValues("error").Inc()
		return
	}
	m.SweepRuns.WithLabelValues("ok").Inc()
	m.LastSuccessfulSweep.Set(float64(time.Now().Unix()))
}

// RecordLedgerCall records ledger call latency and failures.
func (m *Metrics) RecordLedgerCall(method string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.LedgerCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		m.LedgerErrors.WithLabelValues(method).Inc()
	}
}

// RecordLedgerCacheHit increments the terminal-status cache hit counter.
func (m *Metrics) RecordLedgerCacheHit() {
	if m == nil {
		return
	}
	m.LedgerCacheHits.Inc()
}

// RecordTrade records a committed trade.
func (m *Metrics) RecordTrade(success bool) {
	if m == nil {
		return
	}
	m.TradesRecorded.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordArchiveError increments the archive failure counter.
func (m *Metrics) RecordArchiveError() {
	if m == nil {
		return
	}
	m.ArchiveErrors.Inc()
}

// RecordEvaluation increments the evaluation counter.
func (m *Metrics) RecordEvaluation() {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
}

// RecordTrigger records a persisted alert firing.
func (m *Metrics) RecordTrigger(source string) {
	if m == nil {
		return
	}
	m.TriggersFired.WithLabelValues(source).Inc()
}

// RecordEvent records a consumed intake event.
func (m *Metrics) RecordEvent(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsConsumed.WithLabelValues(kind, result).Inc()
}

// RecordHTTPRequest records HTTP request latency.
func (m *Metrics) RecordHTTPRequest(route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(seconds)
}
