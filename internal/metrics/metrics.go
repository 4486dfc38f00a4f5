// Package metrics exposes import counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "costdash"

// Metrics implements ingest.Recorder and tracks the job queue.
type Metrics struct {
	registry *prometheus.Registry

	filesTotal      *prometheus.CounterVec
	rowsMerged      *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	rerouted        *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	jobsTotal       *prometheus.CounterVec
	stateSaveErrors prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	providerLabels := []string{"provider"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_files_total",
				Help:      "Billing files processed, by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		rowsMerged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_merged_total",
				Help:      "Normalized rows merged into month buckets.",
			},
			providerLabels,
		),
		duplicates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_duplicates_skipped_total",
				Help:      "Month buckets skipped because their signature was already merged.",
			},
			providerLabels,
		),
		rerouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rerouted_files_total",
				Help:      "Files imported under the detected provider instead of the declared one.",
			},
			providerLabels,
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_file_duration_seconds",
				Help:      "Duration to import one billing file.",
				Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 30},
			},
			providerLabels,
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_jobs_total",
				Help:      "Import jobs finished, by status.",
			},
			[]string{"status"},
		),
		stateSaveErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_save_errors_total",
				Help:      "Failed writes of engine state to the key/value backend.",
			},
		),
	}

	m.registry.MustRegister(
		m.filesTotal,
		m.rowsMerged,
		m.duplicates,
		m.rerouted,
		m.importDuration,
		m.jobsTotal,
		m.stateSaveErrors,
	)
	return m
}

// ObserveFile records one imported, duplicate or failed file.
func (m *Metrics) ObserveFile(provider domain.Provider, outcome string, rows, duplicates int, rerouted bool, elapsed time.Duration) {
	p := string(provider)
	m.filesTotal.WithLabelValues(p, outcome).Inc()
	m.rowsMerged.WithLabelValues(p).Add(float64(rows))
	m.duplicates.WithLabelValues(p).Add(float64(duplicates))
	if rerouted {
		m.rerouted.WithLabelValues(p).Inc()
	}
	m.importDuration.WithLabelValues(p).Observe(elapsed.Seconds())
}

// ObserveJob records a finished import job.
func (m *Metrics) ObserveJob(status string) {
	m.jobsTotal.WithLabelValues(status).Inc()
}

// StateSaveFailed counts a failed state write.
func (m *Metrics) StateSaveFailed() {
	m.stateSaveErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
