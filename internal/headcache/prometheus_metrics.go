package headcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsHook by publishing to the default
// Prometheus registry, shaped the way the teacher's own
// pebblestore.MetricsHook implementations are expected to be wired: one
// exported constructor, registered once per process.
type PrometheusMetrics struct {
	getLatency      *prometheus.HistogramVec
	listenerGauge   *prometheus.GaugeVec
	roundEntries    *prometheus.HistogramVec
	roundListeners  *prometheus.HistogramVec
	roundDeliveryMs *prometheus.HistogramVec
}

// NewPrometheusMetrics builds and registers a PrometheusMetrics against
// the default registry. Re-registration (e.g. in tests that construct
// more than one) panics, matching promauto's own behavior, so callers
// that need repeatable construction should use a dedicated registry
// instead.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		getLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "headcache",
			Name:      "get_latency_seconds",
			Help:      "Latency of HeadCache.Get calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic", "outcome"}),
		listenerGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "headcache",
			Name:      "pending_listeners",
			Help:      "Number of queries currently blocked waiting on ingest.",
		}, []string{"topic"}),
		roundEntries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "headcache",
			Name:      "ingest_round_entries",
			Help:      "New entries folded per ingest round.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"topic"}),
		roundListeners: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "headcache",
			Name:      "ingest_round_remaining_listeners",
			Help:      "Listeners still pending after an ingest round.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"topic"}),
		roundDeliveryMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "headcache",
			Name:      "ingest_round_delivery_latency_seconds",
			Help:      "Time between a record's produce timestamp and its ingest round landing in cache.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
	}
	prometheus.MustRegister(m.getLatency, m.listenerGauge, m.roundEntries, m.roundListeners, m.roundDeliveryMs)
	return m
}

func (m *PrometheusMetrics) ObserveGet(topic Topic, latency time.Duration, outcome Outcome) {
	m.getLatency.WithLabelValues(string(topic), string(outcome)).Observe(latency.Seconds())
}

func (m *PrometheusMetrics) ObserveListeners(topic Topic, size int) {
	m.listenerGauge.WithLabelValues(string(topic)).Set(float64(size))
}

func (m *PrometheusMetrics) ObserveRound(topic Topic, entries int, listeners int, deliveryLatency time.Duration) {
	m.roundEntries.WithLabelValues(string(topic)).Observe(float64(entries))
	m.roundListeners.WithLabelValues(string(topic)).Observe(float64(listeners))
	m.roundDeliveryMs.WithLabelValues(string(topic)).Observe(deliveryLatency.Seconds())
}
