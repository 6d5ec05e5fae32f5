// Package telemetry exposes the Prometheus metrics published by the daemon.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts accepted submissions.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reframe_jobs_submitted_total",
		Help: "Total jobs accepted for processing",
	})

	// JobsCompleted counts jobs that reached the completed status.
	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reframe_jobs_completed_total",
		Help: "Total jobs that finished the pipeline successfully",
	})

	// JobsFailed counts jobs that reached the failed status, labeled by the
	// stage that failed them. Startup failovers use the stage label "startup".
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_jobs_failed_total",
		Help: "Total jobs that failed, by pipeline stage",
	}, []string{"stage"})

	// JobsInFlight tracks pipeline executions currently running.
	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reframe_jobs_in_flight",
		Help: "Pipeline executions currently running",
	})

	// StageDuration observes wall-clock stage runtimes.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	// HTTPRequests counts API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_http_requests_total",
		Help: "Total HTTP requests handled by the daemon API",
	}, []string{"route", "code"})
)

// ObserveStage records one stage execution.
func ObserveStage(stageLabel string, elapsed time.Duration) {
	StageDuration.WithLabelValues(stageLabel).Observe(elapsed.Seconds())
}
