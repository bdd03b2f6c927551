// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Materialization metrics
	RebuildsTotal   *prometheus.CounterVec
	RebuildDuration *prometheus.HistogramVec
	GenerationID    *prometheus.GaugeVec
	RowsBuilt       *prometheus.GaugeVec

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Loader metrics
	RowsLoaded  *prometheus.CounterVec
	RowsSkipped *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRebuild prometheus.Gauge
	UptimeSeconds         prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "funding_market_lab"
	}

	return &Metrics{
		// Materialization metrics
		RebuildsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "materialize",
			Name:      "rebuilds_total",
			Help:      "Total number of table rebuilds by status",
		}, []string{"table", "status"}),
		RebuildDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "materialize",
			Name:      "rebuild_duration_seconds",
			Help:      "Table rebuild duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"table"}),
		GenerationID: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "materialize",
			Name:      "generation_id",
			Help:      "Currently published generation id by table",
		}, []string{"table"}),
		RowsBuilt: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "materialize",
			Name:      "rows_built",
			Help:      "Row count of the last published generation by table",
		}, []string{"table"}),

		// Query metrics
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Total number of analytics queries by operation and status",
		}, []string{"operation", "status"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Analytics query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Loader metrics
		RowsLoaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "rows_loaded_total",
			Help:      "Total number of source rows loaded by table",
		}, []string{"table"}),
		RowsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "rows_skipped_total",
			Help:      "Total number of malformed source rows skipped by table",
		}, []string{"table"}),

		// Health metrics
		LastSuccessfulRebuild: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_rebuild_timestamp",
			Help:      "Unix timestamp of the last successful rebuild",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRebuild records the outcome of one table rebuild.
func RecordRebuild(table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RebuildsTotal.WithLabelValues(table, status).Inc()
	DefaultMetrics.RebuildDuration.WithLabelValues(table).Observe(duration.Seconds())
	if err == nil {
		DefaultMetrics.LastSuccessfulRebuild.SetToCurrentTime()
	}
}

// RecordGeneration publishes the id and row count of a new generation.
func RecordGeneration(table string, id uint64, rows int) {
	DefaultMetrics.GenerationID.WithLabelValues(table).Set(float64(id))
	DefaultMetrics.RowsBuilt.WithLabelValues(table).Set(float64(rows))
}

// RecordQuery records one analytics query.
func RecordQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.QueriesTotal.WithLabelValues(operation, status).Inc()
	DefaultMetrics.QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRowsLoaded increments the loader row counter.
func RecordRowsLoaded(table string, n int) {
	DefaultMetrics.RowsLoaded.WithLabelValues(table).Add(float64(n))
}

// RecordRowsSkipped increments the loader skip counter.
func RecordRowsSkipped(table string, n int) {
	DefaultMetrics.RowsSkipped.WithLabelValues(table).Add(float64(n))
}
