package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_oracle"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// contract host, the event relay and the indexer pipeline.
type Metrics struct {
	// Contract metrics.
	Requests        prometheus.Counter
	Fulfillments    prometheus.Counter
	Rejections      *prometheus.CounterVec // labels: operation, reason
	EscrowBalance   prometheus.Gauge
	PendingRequests prometheus.Gauge

	// Relay metrics.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
	RelayCursor     prometheus.Gauge

	// Indexer metrics.
	MessagesConsumed prometheus.Counter
	ReportsCreated   prometheus.Counter
	DuplicateReports prometheus.Counter
	ReplayCacheHits  prometheus.Counter
	MalformedEvents  prometheus.Counter
	LoadErrors       prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not registered with any
// registry. Components fall back to it when constructed without metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total weather requests accepted by the contract.",
		}),
		Fulfillments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulfillments_total",
			Help:      "Total weather requests fulfilled by the callback authority.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Contract operations rejected, by operation and reason.",
		}, []string{"operation", "reason"}),
		EscrowBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrow_balance_tokens",
			Help:      "Tokens currently held in escrow by the contract.",
		}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests recorded and not yet fulfilled.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total contract events published to the event topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed attempts to publish an event batch.",
		}),
		RelayCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_cursor",
			Help:      "Sequence number of the last event log entry published.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the event topic.",
		}),
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Total reports materialized by the indexer.",
		}),
		DuplicateReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_reports_total",
			Help:      "Total WeatherReported events discarded because the report already existed.",
		}),
		ReplayCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_cache_hits_total",
			Help:      "Duplicates answered from the indexer replay cache without a store lookup.",
		}),
		MalformedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_events_total",
			Help:      "Events rejected for violating the wire schema.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Total failed attempts to apply a batch to the report store.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the indexer pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-decode-apply cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Requests,
		m.Fulfillments,
		m.Rejections,
		m.EscrowBalance,
		m.PendingRequests,
		m.EventsPublished,
		m.PublishErrors,
		m.RelayCursor,
		m.MessagesConsumed,
		m.ReportsCreated,
		m.DuplicateReports,
		m.ReplayCacheHits,
		m.MalformedEvents,
		m.LoadErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
	}
}
