// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	RowsExtractedTotal  *prometheus.CounterVec
	RowsSkippedTotal    *prometheus.CounterVec
	RecordsWrittenTotal *prometheus.CounterVec
	QueryLatency        *prometheus.HistogramVec
	EnrichmentLatency   *prometheus.HistogramVec
	SinkBatchSize       *prometheus.HistogramVec
	CheckpointLag       *prometheus.GaugeVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_runs_total",
				Help: "Total pipeline runs by report type and terminal status.",
			},
			[]string{"report_type", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_run_duration_seconds",
				Help:    "End-to-end pipeline run duration in seconds.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"report_type"},
		),
		RowsExtractedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rows_extracted_total",
				Help: "Raw rows returned by the analytics API per report type.",
			},
			[]string{"report_type"},
		),
		RowsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rows_skipped_total",
				Help: "Rows skipped during decode or enrichment, by reason.",
			},
			[]string{"report_type", "reason"},
		),
		RecordsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_written_total",
				Help: "Enriched records handed to the event sink.",
			},
			[]string{"report_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_query_latency_seconds",
				Help:    "Remote analytics query latency in seconds.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"report_type"},
		),
		EnrichmentLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "enrichment_batch_latency_seconds",
				Help:    "Enrichment fan-out latency per batch in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"report_type"},
		),
		SinkBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_batch_size",
				Help:    "Number of enriched records per sink write.",
				Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"report_type"},
		),
		CheckpointLag: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "checkpoint_lag_seconds",
				Help: "Age of the committed high-water mark per input and report type.",
			},
			[]string{"input_id", "report_type"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RowsExtractedTotal,
		m.RowsSkippedTotal,
		m.RecordsWrittenTotal,
		m.QueryLatency,
		m.EnrichmentLatency,
		m.SinkBatchSize,
		m.CheckpointLag,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
