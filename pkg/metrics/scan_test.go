package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestScanMetricsRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)

	m.ObserveBatch("received_in", 120*time.Millisecond)
	m.IncEvent("received_in", "accepted")
	m.IncEvent("", "skipped_duplicate")
	m.IncCorrection()
	m.IncPartitionFailure()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	require.True(t, names["scan_batch_duration_seconds"])
	require.True(t, names["scan_events_total"])
	require.True(t, names["scan_batches_total"])
	require.True(t, names["scan_duplicate_corrections_total"])
	require.True(t, names["scan_partition_failures_total"])
}

func TestScanMetricsNilSafe(t *testing.T) {
	var m *ScanMetrics
	m.ObserveBatch("x", time.Second)
	m.IncEvent("x", "y")
	m.IncCorrection()
	m.IncPartitionFailure()

	empty := NewScanMetrics(nil)
	empty.ObserveBatch("x", time.Second)
	empty.IncEvent("x", "y")
}
