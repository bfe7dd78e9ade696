// Package metrics defines the Prometheus collectors of the index rebuild
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexer. Each Metrics owns
// its registry so independent instances (tests, watch mode) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec
	PhaseDuration      *prometheus.HistogramVec
	DocumentsLoaded    prometheus.Counter
	DocumentsProcessed *prometheus.CounterVec
	DocumentFailures   *prometheus.CounterVec
	RowsWritten        prometheus.Counter
	CollectedBytes     prometheus.Gauge
	IndexTerms         prometheus.Gauge
	IndexDocuments     prometheus.Gauge
	IndexRows          prometheus.Gauge
	LastSuccess        prometheus.Gauge
}

// New creates and registers all indexer metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_rebuild_runs_total",
				Help: "Index rebuild runs by result (success, no_documents, nothing_to_index, dry_run, failed).",
			},
			[]string{"result"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "index_rebuild_phase_duration_seconds",
				Help:    "Duration of each rebuild phase in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"phase"},
		),
		DocumentsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_documents_loaded_total",
				Help: "Documents read from the source table.",
			},
		),
		DocumentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_documents_processed_total",
				Help: "Documents processed by outcome (indexed, skipped, failed).",
			},
			[]string{"outcome"},
		),
		DocumentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_document_failures_total",
				Help: "Per-document failures by error class.",
			},
			[]string{"class"},
		),
		RowsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_rows_written_total",
				Help: "Rows inserted into the positional index.",
			},
		),
		CollectedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_collected_bytes",
				Help: "Estimated memory held by rows collected in the last map phase.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_distinct_terms",
				Help: "Distinct terms in the index after the last rebuild.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_distinct_documents",
				Help: "Distinct documents in the index after the last rebuild.",
			},
		),
		IndexRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_rows",
				Help: "Rows in the index after the last rebuild.",
			},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_rebuild_last_success_timestamp_seconds",
				Help: "Unix time of the last successful rebuild.",
			},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.PhaseDuration,
		m.DocumentsLoaded,
		m.DocumentsProcessed,
		m.DocumentFailures,
		m.RowsWritten,
		m.CollectedBytes,
		m.IndexTerms,
		m.IndexDocuments,
		m.IndexRows,
		m.LastSuccess,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for m's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
