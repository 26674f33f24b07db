package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Dataset loading.
	RecordsLoaded       prometheus.Counter
	RecordsDropped      prometheus.Counter
	DatasetLoadErrors   prometheus.Counter
	DatasetLoadDuration prometheus.Histogram
	SnapshotRecords     prometheus.Gauge

	// View serving.
	ViewCache    *prometheus.CounterVec // labels: result={hit,miss}
	ViewRequests *prometheus.CounterVec // labels: view

	// Kafka ingest.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         *prometheus.CounterVec // labels: reason={malformed,not_object}
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsLoaded,
		m.RecordsDropped,
		m.DatasetLoadErrors,
		m.DatasetLoadDuration,
		m.SnapshotRecords,
		m.ViewCache,
		m.ViewRequests,
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "records_loaded_total",
			Help:      "Total incident records normalized into a snapshot.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "records_dropped_total",
			Help:      "Total dataset entries dropped because they were not objects.",
		}),
		DatasetLoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "dataset_load_errors_total",
			Help:      "Total failed dataset loads.",
		}),
		DatasetLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "near_miss",
			Name:      "dataset_load_duration_seconds",
			Help:      "Duration of a dataset load including fetch and normalization.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "near_miss",
			Name:      "snapshot_records",
			Help:      "Number of incidents in the current snapshot.",
		}),
		ViewCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "view_cache_total",
			Help:      "Categorical view cache lookups by result.",
		}, []string{"result"}),
		ViewRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "view_requests_total",
			Help:      "Aggregate view computations by view.",
		}, []string{"view"}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "messages_produced_total",
			Help:      "Total normalized incidents loaded by the pipeline.",
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "near_miss",
			Name:      "transform_errors_total",
			Help:      "Total streamed messages skipped because they did not carry an incident object.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "near_miss",
			Name:      "pipeline_running",
			Help:      "1 when the ingest pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "near_miss",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "near_miss",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
