// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	RunsStarted   prometheus.Counter
	RunsFinished  *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	BarsProcessed prometheus.Counter

	// Action metrics
	ActionsRecorded *prometheus.CounterVec
	Liquidations    *prometheus.CounterVec

	// Output metrics
	ReportsGenerated prometheus.Counter
	StreamClients    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered on
// reg. A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "defi_backtest_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_started_total",
			Help:      "Total number of backtest runs started",
		}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_finished_total",
			Help:      "Total number of backtest runs finished by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bars_processed_total",
			Help:      "Total number of bars processed across all runs",
		}),

		ActionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "actions_recorded_total",
			Help:      "Total number of actions recorded by type",
		}, []string{"action_type"}),
		Liquidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "liquidations_total",
			Help:      "Total number of liquidations by market",
		}, []string{"market"}),

		ReportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of report artifact sets generated",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected WebSocket clients",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRunStart increments the runs started counter.
func (m *Metrics) RecordRunStart() {
	if m == nil {
		return
	}
	m.RunsStarted.Inc()
}

// RecordRunFinished records a finished run with its outcome and size.
func (m *Metrics) RecordRunFinished(status string, durationSeconds float64, bars int) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
	m.BarsProcessed.Add(float64(bars))
}

// RecordAction increments the action counter for one action tag.
func (m *Metrics) RecordAction(actionType string) {
	if m == nil {
		return
	}
	m.ActionsRecorded.WithLabelValues(actionType).Inc()
}

// RecordLiquidation increments the liquidation counter for a market.
func (m *Metrics) RecordLiquidation(market string) {
	if m == nil {
		return
	}
	m.Liquidations.WithLabelValues(market).Inc()
}

// RecordReportGenerated increments the reports generated counter.
func (m *Metrics) RecordReportGenerated() {
	if m == nil {
		return
	}
	m.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
