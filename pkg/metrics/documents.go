package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DocumentMetrics records document generation outcomes.
type DocumentMetrics struct {
	created       *prometheus.CounterVec
	reused        *prometheus.CounterVec
	failed        *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
}

// NewDocumentMetrics registers the document metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewDocumentMetrics(reg prometheus.Registerer) *DocumentMetrics {
	if reg == nil {
		return &DocumentMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_created_total",
		Help: "Documents persisted by the batch orchestrator.",
	}, []string{"type"})
	reused := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_reused_total",
		Help: "Existing documents returned instead of creating duplicates.",
	}, []string{"type", "stage"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_failed_total",
		Help: "Per-type failures collected in batch responses.",
	}, []string{"type"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "document_batch_duration_seconds",
		Help:    "Duration of create-batch runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(created, reused, failed, batchDuration)
	return &DocumentMetrics{
		created:       created,
		reused:        reused,
		failed:        failed,
		batchDuration: batchDuration,
	}
}

func (m *DocumentMetrics) IncCreated(docType string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(docType)).Inc()
}

func (m *DocumentMetrics) IncReused(docType, stage string) {
	if m == nil || m.reused == nil {
		return
	}
	m.reused.WithLabelValues(normalizeLabel(docType), normalizeLabel(stage)).Inc()
}

func (m *DocumentMetrics) IncFailed(docType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(docType)).Inc()
}

// ObserveBatch records how long a batch took; outcome is "success" or "partial".
func (m *DocumentMetrics) ObserveBatch(outcome string, duration time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
