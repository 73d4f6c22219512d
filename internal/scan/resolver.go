package scan

import (
	"context"
	"time"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
)

// Resolver computes, for one filtered event, the item's next lifecycle state
// and a disposition describing what happened. Transitions on the same serial
// code are linearized by the per-(category, supplier) lock held by the
// pipeline, never by the resolver itself.
type Resolver struct {
	repo   Repository
	window time.Duration
	now    func() time.Time
}

// NewResolver builds a lifecycle resolver with the given correction window.
func NewResolver(repo Repository, window time.Duration) *Resolver {
	return &Resolver{repo: repo, window: window, now: time.Now}
}

// Resolve transitions one event's item toward the requested stage.
//
// Unresolvable events are never fatal: they come back as Skipped results and
// are excluded from downstream aggregation.
func (r *Resolver) Resolve(ctx context.Context, event Event, stage enums.Stage, supplierCode string, clientCode *string) (ItemResult, error) {
	item, err := r.repo.FindItemBySerial(ctx, event.SerialCode)
	if err != nil {
		return ItemResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up item")
	}

	if item == nil {
		if !stage.AllowsFirstSeen() {
			return skipped(event, enums.SkipReasonNoPredecessor), nil
		}
		created := &models.Item{
			RFIDTagCode:  event.RFIDTagCode,
			SerialCode:   event.SerialCode,
			CategoryCode: event.CategoryCode,
			SupplierCode: supplierCode,
			ClientCode:   attribution(stage, clientCode),
			Stage:        stage,
			Cycle:        0,
			LastEventAt:  r.now(),
		}
		if err := r.repo.CreateItem(ctx, created); err != nil {
			return ItemResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
		}
		return ItemResult{Event: event, Item: created, Disposition: enums.DispositionFirstSeen}, nil
	}

	if item.Stage == enums.StageDiscarded {
		return skipped(event, enums.SkipReasonDiscarded), nil
	}

	if item.Stage == stage {
		// A re-read of the current stage inside the correction window is a
		// legitimate rapid re-scan; it still reaches the duplicate guard.
		if r.now().Sub(item.LastEventAt) <= r.window {
			return ItemResult{Event: event, Item: item, Disposition: enums.DispositionReaffirmed}, nil
		}
		return skipped(event, enums.SkipReasonStaleDuplicate), nil
	}

	predecessor, ok := stage.Predecessor()
	if !ok || item.Stage != predecessor {
		return skipped(event, enums.SkipReasonWrongState), nil
	}

	// Returned and Cleaned require a prior received-in: the item must have
	// been attributed to a client on its way out of the warehouse.
	if stage == enums.StageReturned && !item.HasClient() {
		return skipped(event, enums.SkipReasonNoPredecessor), nil
	}

	item.Stage = stage
	item.LastEventAt = r.now()
	switch stage {
	case enums.StageReturned:
		// One full ship-out loop completed; the unit is back in the pool.
		item.Cycle++
		item.ClientCode = nil
	case enums.StageShippedOut, enums.StageReceivedIn:
		item.ClientCode = attribution(stage, clientCode)
	}

	if err := r.repo.SaveItem(ctx, item); err != nil {
		return ItemResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item transition")
	}
	return ItemResult{Event: event, Item: item, Disposition: enums.DispositionTransitioned}, nil
}

func attribution(stage enums.Stage, clientCode *string) *string {
	switch stage {
	case enums.StageShippedOut, enums.StageReceivedIn:
		if clientCode != nil && *clientCode != "" {
			client := *clientCode
			return &client
		}
		return nil
	default:
		return nil
	}
}

func skipped(event Event, reason enums.SkipReason) ItemResult {
	return ItemResult{Event: event, Disposition: enums.DispositionSkipped, Reason: reason}
}
