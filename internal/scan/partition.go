package scan

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/metrics"
)

// PartitionWork resolves one partition's events and returns their results.
type PartitionWork func(ctx context.Context, events []Event) ([]ItemResult, error)

// Partitioner fans the resolver stage out over fixed slices of the event
// list. Small batches stay on a single partition; larger ones split into a
// fixed number of parallel partitions, joined before reconciliation.
type Partitioner struct {
	threshold int
	fanout    int
	scanStats *metrics.ScanMetrics
}

// NewPartitioner builds a partitioner with the given single-partition
// threshold and fan-out width.
func NewPartitioner(threshold, fanout int, scanStats *metrics.ScanMetrics) (*Partitioner, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("partition threshold must be positive, got %d", threshold)
	}
	if fanout < 1 {
		return nil, fmt.Errorf("partition fanout must be positive, got %d", fanout)
	}
	return &Partitioner{threshold: threshold, fanout: fanout, scanStats: scanStats}, nil
}

// Split slices the events into partitions that cover the input exactly once.
// The integer-division remainder lands in the final partition.
func (p *Partitioner) Split(events []Event) [][]Event {
	if len(events) == 0 {
		return nil
	}
	if len(events) < p.threshold || p.fanout == 1 {
		return [][]Event{events}
	}

	size := len(events) / p.fanout
	if size == 0 {
		return [][]Event{events}
	}
	parts := make([][]Event, 0, p.fanout)
	for i := 0; i < p.fanout; i++ {
		start := i * size
		end := start + size
		if i == p.fanout-1 {
			end = len(events)
		}
		parts = append(parts, events[start:end])
	}
	return parts
}

// Run executes the work over every partition in parallel and joins them all
// before returning. If any partition fails, the whole call fails with a
// partition error whose details list every serial code left unprocessed; no
// partial result set is returned.
func (p *Partitioner) Run(ctx context.Context, events []Event, work PartitionWork) ([]ItemResult, error) {
	parts := p.Split(events)
	if len(parts) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		results  []ItemResult
		failures error
		missed   []string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, part := range parts {
		part := part
		group.Go(func() error {
			resolved, err := work(groupCtx, part)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = multierr.Append(failures, err)
				for _, event := range part {
					missed = append(missed, event.SerialCode)
				}
				return err
			}
			results = append(results, resolved...)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if p.scanStats != nil {
			p.scanStats.IncPartitionFailure()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePartition, failures, "partitioned resolution failed").
			WithDetails(map[string]any{"unprocessed_serial_codes": missed})
	}
	return results, nil
}
