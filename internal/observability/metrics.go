package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the feed connection.
type Metrics struct {
	SpotsProcessed   prometheus.Counter
	BatchesPersisted prometheus.Counter
	PersistFailures  prometheus.Counter
	MessagesDropped  *prometheus.CounterVec // labels: reason={parse,overflow,enrich}
	FeedConnected    prometheus.Gauge

	BatchSize       prometheus.Histogram
	PersistDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SpotsProcessed,
		m.BatchesPersisted,
		m.PersistFailures,
		m.MessagesDropped,
		m.FeedConnected,
		m.BatchSize,
		m.PersistDuration,
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
		SpotsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Name:      "spots_processed_total",
			Help:      "Total spots parsed, enriched, and buffered for persistence.",
		}),
		BatchesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Name:      "batches_persisted_total",
			Help:      "Total spot batches written to the store.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotstream",
			Name:      "persist_failures_total",
			Help:      "Total batches lost to persistence failures.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotstream",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by the pipeline, by reason.",
		}, []string{"reason"}),
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spotstream",
			Name:      "feed_connected",
			Help:      "1 when the spot feed connection is up, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotstream",
			Name:      "batch_size",
			Help:      "Number of spots per persisted batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotstream",
			Name:      "persist_duration_seconds",
			Help:      "Duration of one batch write to the store.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}
}
