package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MaintenanceMetrics records maintenance worker job runs.
type MaintenanceMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewMaintenanceMetrics registers the job metrics on the provided registerer.
func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job executions by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &MaintenanceMetrics{duration: duration, runs: runs}
}

// ObserveJob records one run of job with its outcome and duration.
func (m *MaintenanceMetrics) ObserveJob(job, outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(duration.Seconds())
	m.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
}
