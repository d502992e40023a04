package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	DocgenGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_generations_total",
			Help: "Document generations by outcome",
		},
		[]string{"outcome"},
	)

	DocgenStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_stage_duration_seconds",
			Help:    "Duration of each document pipeline stage",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"stage"},
	)

	DocgenRecoverableErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_recoverable_errors_total",
			Help: "Best-effort failures that were skipped during generation",
		},
		[]string{"stage", "kind"},
	)

	DocgenImagesEmbedded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_images_embedded_total",
			Help: "Images embedded into generated documents by source",
		},
		[]string{"source"},
	)

	StorageOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Document storage operations by backend, operation and status",
		},
		[]string{"backend", "operation", "status"},
	)
)

// Status maps an error to the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
