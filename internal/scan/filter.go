package scan

import (
	"context"
	"strings"

	"github.com/circularlabs/rfid-trace/pkg/enums"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
)

// Filter removes events that do not carry the accepted device-class marker
// and events whose (category, serial) pair was ever discarded. It is a pure
// read: discarded items must never re-enter the lifecycle, and malformed
// reads must not pollute aggregates.
type Filter struct {
	marker string
	repo   Repository
}

// NewFilter builds the scan event filter.
func NewFilter(repo Repository, marker string) *Filter {
	return &Filter{repo: repo, marker: marker}
}

// FilterResult splits a raw batch into events worth resolving and per-event
// outcomes for the rest. DiscardAdjustments counts, per category, the events
// that referenced a since-discarded item; the reconciler backs these out of
// the flow arithmetic.
type FilterResult struct {
	Kept               []Event
	Dropped            []ItemOutcomeView
	DiscardAdjustments map[string]int
}

// Accepts reports whether the event carries the accepted device-class
// marker. The discard path uses this alone: an existing discard record is
// not a reason to drop a discard submission.
func (f *Filter) Accepts(event Event) bool {
	return strings.Contains(event.DeviceFilterTag, f.marker)
}

// Apply runs the filter over the raw event list.
func (f *Filter) Apply(ctx context.Context, events []Event) (FilterResult, error) {
	result := FilterResult{DiscardAdjustments: make(map[string]int)}

	for _, event := range events {
		if !f.Accepts(event) {
			result.Dropped = append(result.Dropped, ItemOutcomeView{
				SerialCode: event.SerialCode,
				Outcome:    enums.ItemOutcomeSkippedUnknownDevice,
			})
			continue
		}

		discarded, err := f.repo.HasDiscard(ctx, event.CategoryCode, event.SerialCode)
		if err != nil {
			return FilterResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check discard ledger")
		}
		if discarded {
			result.DiscardAdjustments[event.CategoryCode]++
			result.Dropped = append(result.Dropped, ItemOutcomeView{
				SerialCode: event.SerialCode,
				Outcome:    enums.ItemOutcomeSkippedDiscarded,
			})
			continue
		}

		result.Kept = append(result.Kept, event)
	}
	return result, nil
}
