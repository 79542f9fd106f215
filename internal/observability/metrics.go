package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the risk
// index service.
type Metrics struct {
	MeasurementsConsumed prometheus.Counter
	MeasurementsLoaded   prometheus.Counter
	TransformErrors      prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Ingest batch metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Recalculation metrics.
	BlocksScored        *prometheus.CounterVec // labels: outcome={success,error}
	RecalcRunDuration   prometheus.Histogram
	ChunkUpsertFailures prometheus.Counter
	SmoothingApplied    prometheus.Counter
	SnapshotsTaken      prometheus.Counter
	AlertsPublished     prometheus.Counter
	BlockCacheLookups   *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MeasurementsConsumed,
		m.MeasurementsLoaded,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.BlocksScored,
		m.RecalcRunDuration,
		m.ChunkUpsertFailures,
		m.SmoothingApplied,
		m.SnapshotsTaken,
		m.AlertsPublished,
		m.BlockCacheLookups,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MeasurementsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "measurements_consumed_total",
			Help:      "Total raw measurements read from the source topic.",
		}),
		MeasurementsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "measurements_loaded_total",
			Help:      "Total normalized measurements written to storage.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "transform_errors_total",
			Help:      "Total raw measurements rejected during normalization.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "risk_index",
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "risk_index",
			Name:      "batch_size",
			Help:      "Number of raw measurements per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "risk_index",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		BlocksScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "blocks_scored_total",
			Help:      "Blocks processed by recalculation runs, by outcome.",
		}, []string{"outcome"}),
		RecalcRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "risk_index",
			Name:      "recalc_run_duration_seconds",
			Help:      "Duration of a full or regional recalculation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		ChunkUpsertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "chunk_upsert_failures_total",
			Help:      "Failed chunked block upserts during recalculation runs.",
		}),
		SmoothingApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "smoothing_applied_total",
			Help:      "Blocks whose composite index was spatially smoothed.",
		}),
		SnapshotsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "snapshots_taken_total",
			Help:      "History snapshots appended by recalculation runs.",
		}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "alerts_published_total",
			Help:      "Category escalation alerts handed to the alert sink.",
		}),
		BlockCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_index",
			Name:      "block_cache_lookups_total",
			Help:      "Block profile cache lookups by result.",
		}, []string{"result"}),
	}
}
