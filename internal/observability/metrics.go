// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer. Constructed once by
// the composition root and injected; there is no ambient global instance.
type Metrics struct {
	// Ingestion metrics
	EventsDecoded    *prometheus.CounterVec
	EventsProcessed  *prometheus.CounterVec
	EventsStored     *prometheus.CounterVec
	ProcessingErrors *prometheus.CounterVec
	EventBufferSize  prometheus.Gauge

	// Latency metrics
	EventProcessingLatency *prometheus.HistogramVec
	RPCCallLatency         *prometheus.HistogramVec

	// Scheduler metrics
	ScheduledJobsTotal *prometheus.CounterVec

	// Integrity metrics
	IntegrityChecksTotal *prometheus.CounterVec

	// Monitoring metrics
	MetricFlushesTotal *prometheus.CounterVec
	MetricBufferDepth  prometheus.Gauge

	// Health metrics
	LastEventTimestamp prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on the
// default registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "uniswap_pool_indexer"
	}

	return &Metrics{
		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_decoded_total",
			Help:      "Total number of pool log events decoded",
		}, []string{"kind"}),
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_processed_total",
			Help:      "Total number of events fully processed",
		}, []string{"kind"}),
		EventsStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_stored_total",
			Help:      "Total number of events persisted to the raw table",
		}, []string{"kind"}),
		ProcessingErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "processing_errors_total",
			Help:      "Total number of per-event failures by stage",
		}, []string{"kind", "stage"}),
		EventBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_buffer_size",
			Help:      "Current number of decoded events awaiting a worker",
		}),

		EventProcessingLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "event_processing_latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		ScheduledJobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Total number of scheduled job runs by job and status",
		}, []string{"job", "status"}),

		IntegrityChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrity",
			Name:      "checks_total",
			Help:      "Total number of integrity check runs by check and outcome",
		}, []string{"check", "outcome"}),

		MetricFlushesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "metric_flushes_total",
			Help:      "Total number of event-metric flushes by status",
		}, []string{"status"}),
		MetricBufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitoring",
			Name:      "metric_buffer_depth",
			Help:      "Current number of buffered event metrics",
		}),

		LastEventTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last event handled",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
