package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's Prometheus instruments. A single instance is
// wired through the orchestrator and API.
type Metrics struct {
	Submissions       prometheus.Counter
	JobsCompleted     prometheus.Counter
	JobsFailed        prometheus.Counter
	JobsCancelled     prometheus.Counter
	InferenceAttempts *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	ProcessingSeconds prometheus.Histogram
}

// New registers all instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisperflow_submissions_total",
			Help: "Jobs accepted for processing.",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisperflow_jobs_completed_total",
			Help: "Jobs that reached the completed state.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisperflow_jobs_failed_total",
			Help: "Jobs that reached the failed state.",
		}),
		JobsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisperflow_jobs_cancelled_total",
			Help: "Jobs that reached the cancelled state.",
		}),
		InferenceAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisperflow_inference_attempts_total",
			Help: "Inference attempts by device, compute type, and outcome.",
		}, []string{"device", "compute_type", "outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisperflow_queue_depth",
			Help: "Jobs waiting for the inference slot.",
		}),
		ProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisperflow_processing_seconds",
			Help:    "Wall-clock processing time of completed jobs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
