package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all scheduler metrics.
	MetricsNamespace = "market"

	// MetricsSubsystem is the subsystem for scheduler metrics.
	MetricsSubsystem = "scheduler"
)

// durationBuckets cover sub-second collector calls up to the 300s
// collector timeout.
var durationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Metrics holds all Prometheus metrics for the scheduler.
type Metrics struct {
	JobsTotal          *prometheus.CounterVec
	JobExecutionsTotal *prometheus.CounterVec
	JobRetriesTotal    *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec

	ActiveJobs  *prometheus.GaugeVec
	PendingJobs *prometheus.GaugeVec
	FailedJobs  *prometheus.GaugeVec
}

// NewMetrics creates and registers all scheduler metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "jobs_total",
				Help:      "Total job status transitions",
			},
			[]string{"status", "asset_type"},
		),
		JobExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "job_executions_total",
				Help:      "Total job execution attempts by terminal status",
			},
			[]string{"status", "asset_type", "error_category"},
		),
		JobRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "job_retries_total",
				Help:      "Total retries scheduled after failed attempts",
			},
			[]string{"job_id", "asset_type"},
		),
		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "job_duration_seconds",
				Help:      "Job execution duration in seconds",
				Buckets:   durationBuckets,
			},
			[]string{"asset_type", "status"},
		),
		ActiveJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "active_jobs",
				Help:      "Jobs currently in active status",
			},
			[]string{"asset_type"},
		),
		PendingJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "pending_jobs",
				Help:      "Jobs currently in pending status",
			},
			[]string{"asset_type"},
		),
		FailedJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "failed_jobs",
				Help:      "Jobs currently in failed status",
			},
			[]string{"asset_type"},
		),
	}
}
