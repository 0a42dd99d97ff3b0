package metrics

import "github.com/prometheus/client_golang/prometheus"

// Batch pipeline and classification Prometheus metrics.
var (
	BatchJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "batch_jobs_total",
			Help:      "Total number of batch jobs by terminal outcome",
		},
		[]string{"model", "outcome"}, // outcome: succeeded, failed, cancelled, expired, submission_error, fetch_error
	)

	BatchJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toxgate",
			Name:      "batch_job_duration_seconds",
			Help:      "Wall-clock time from submission to terminal state",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
		[]string{"model"},
	)

	BatchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "batch_items_total",
			Help:      "Per-item outcomes of reconciled batches",
		},
		[]string{"outcome"}, // analyzed, item_error, missing
	)

	BatchPollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "batch_poll_ticks_total",
			Help:      "Status polls issued against the backend",
		},
		[]string{"model"},
	)

	ClassifyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "classify_requests_total",
			Help:      "Synchronous classification requests by status",
		},
		[]string{"status"}, // success, error
	)

	ClassifyEscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "classify_escalations_total",
			Help:      "Texts escalated to the contextual model",
		},
		[]string{"status"}, // success, error
	)

	AnalysisCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toxgate",
			Name:      "analysis_cache_total",
			Help:      "Classification cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var batchMetricsRegistered bool

// RegisterBatchMetrics registers batch and classification metrics.
// Must be called once from main.
func RegisterBatchMetrics() {
	if batchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BatchJobsTotal)
	prometheus.MustRegister(BatchJobDuration)
	prometheus.MustRegister(BatchItemsTotal)
	prometheus.MustRegister(BatchPollTicks)
	prometheus.MustRegister(ClassifyRequestsTotal)
	prometheus.MustRegister(ClassifyEscalationsTotal)
	prometheus.MustRegister(AnalysisCacheTotal)
	batchMetricsRegistered = true
}
