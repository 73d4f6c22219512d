package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetrics records metadata for the scan reconciliation pipeline.
type ScanMetrics struct {
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec
	batches     *prometheus.CounterVec
	corrections prometheus.Counter
	partitions  prometheus.Counter
}

// NewScanMetrics registers the pipeline metrics on the provided registerer.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	if reg == nil {
		return &ScanMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scan_batch_duration_seconds",
		Help:    "Duration of scan batch processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_events_total",
		Help: "Scan events by stage and outcome.",
	}, []string{"stage", "outcome"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scan_batches_total",
		Help: "Processed scan batches by stage.",
	}, []string{"stage"})
	corrections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_duplicate_corrections_total",
		Help: "Duplicate submissions absorbed inside the correction window.",
	})
	partitions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_partition_failures_total",
		Help: "Partition work units that failed.",
	})
	reg.MustRegister(duration, events, batches, corrections, partitions)
	return &ScanMetrics{
		duration:    duration,
		events:      events,
		batches:     batches,
		corrections: corrections,
		partitions:  partitions,
	}
}

// ObserveBatch records the duration of one batch for the named stage.
func (m *ScanMetrics) ObserveBatch(stage string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
	m.batches.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncEvent counts one scan event outcome.
func (m *ScanMetrics) IncEvent(stage, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(stage), normalizeLabel(outcome)).Inc()
}

// IncCorrection counts one duplicate submission treated as a correction.
func (m *ScanMetrics) IncCorrection() {
	if m == nil || m.corrections == nil {
		return
	}
	m.corrections.Inc()
}

// IncPartitionFailure counts one failed partition work unit.
func (m *ScanMetrics) IncPartitionFailure() {
	if m == nil || m.partitions == nil {
		return
	}
	m.partitions.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
