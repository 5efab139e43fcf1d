package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for simulation
// batches and result merges.
type Metrics struct {
	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunFailures   prometheus.Counter
	RunsInFlight  prometheus.Gauge
	BatchRunning  prometheus.Gauge
	RunDuration   prometheus.Histogram

	// Merge metrics.
	RowsMerged      prometheus.Counter
	MergeMismatches prometheus.Counter
	FilesRead       *prometheus.CounterVec // labels: outcome={success,error}

	// Data source probe metrics.
	ProbeDuration prometheus.Histogram
	ProbeFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsStarted,
		m.RunsCompleted,
		m.RunFailures,
		m.RunsInFlight,
		m.BatchRunning,
		m.RunDuration,
		m.RowsMerged,
		m.MergeMismatches,
		m.FilesRead,
		m.ProbeDuration,
		m.ProbeFailures,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not registered with the
// default registry. Tools that run a stage without exposing /metrics and
// tests that build many instances use it to avoid "already registered" panics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "runs_started_total",
			Help:      "Total simulation runs handed to the engine.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "runs_completed_total",
			Help:      "Total simulation runs that wrote their output file.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "run_failures_total",
			Help:      "Total simulation runs that failed.",
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drift_batch",
			Name:      "runs_in_flight",
			Help:      "Simulation runs currently executing.",
		}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drift_batch",
			Name:      "batch_running",
			Help:      "1 while a simulation batch is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drift_batch",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a single simulation run.",
			Buckets:   []float64{1, 10, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
		}),
		RowsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "rows_merged_total",
			Help:      "Total table rows given terminal coordinates.",
		}),
		MergeMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "merge_mismatches_total",
			Help:      "Merges rejected because output files did not match table rows.",
		}),
		FilesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "output_files_read_total",
			Help:      "Output files opened by the merger, by outcome.",
		}, []string{"outcome"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drift_batch",
			Name:      "source_probe_duration_seconds",
			Help:      "Duration of the forcing data source reachability check.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drift_batch",
			Name:      "source_probe_failures_total",
			Help:      "Failed forcing data source reachability checks.",
		}),
	}
}
