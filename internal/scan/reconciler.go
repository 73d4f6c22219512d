package scan

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/internal/orders"
	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

// Reconciler turns one resolved group into a new aggregate snapshot. Callers
// must hold the (category, supplier) lock: the prior-snapshot read and the
// new-snapshot write have to be linearized per pool.
type Reconciler struct {
	repo   Repository
	orders orders.Ledger
	policy enums.DiscardPolicy
	logg   *logger.Logger
}

// NewReconciler builds the aggregate reconciler.
func NewReconciler(repo Repository, ledger orders.Ledger, policy enums.DiscardPolicy, logg *logger.Logger) (*Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	return &Reconciler{repo: repo, orders: ledger, policy: policy, logg: logg}, nil
}

// GroupInput is one reconciliation unit: a post-resolution group plus the
// count of events the filter dropped as referencing since-discarded items.
// Those dropped events are excluded from EventCount but still feed the
// discard backlash term.
type GroupInput struct {
	Key               GroupKey
	DeviceCode        string
	EventCount        int
	DiscardAdjustment int
	LastEventAt       time.Time
}

// Reconcile computes and persists the next ScanBatchRecord for the group.
// The whole read-compute-write runs on the supplied transaction.
func (r *Reconciler) Reconcile(ctx context.Context, tx *gorm.DB, in GroupInput) (*models.ScanBatchRecord, error) {
	repo := r.repo.WithTx(tx)

	orderedTotal, err := r.orders.OrderedTotal(ctx, in.Key.CategoryCode, in.Key.SupplierCode)
	if err != nil {
		return nil, err
	}
	discardedTotal, err := r.discardedTotal(ctx, repo, in.Key)
	if err != nil {
		return nil, err
	}
	totalRemainder := orderedTotal - discardedTotal

	prior, err := repo.LatestBatch(ctx, in.Key.CategoryCode, in.Key.SupplierCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior batch")
	}

	// Pool conservation deltas. Backlash backs out discards that a prior
	// snapshot already subtracted, so they are not counted twice when the
	// same batch also carried a discard adjustment.
	deltaOrdered := 0
	if prior != nil {
		deltaOrdered = totalRemainder - prior.TotalRemainder
	}
	backlash := 0
	if in.DiscardAdjustment != 0 && discardedTotal-in.DiscardAdjustment != 0 {
		backlash = discardedTotal
	}

	inFlow, nonReturned, priorStage := r.baseline(prior, totalRemainder)
	n := in.EventCount
	switch in.Key.Stage {
	case enums.StageShippedOut:
		inFlow += deltaOrdered
		if priorStage != enums.StageShippedOut {
			inFlow -= backlash
		}
	case enums.StageReceivedIn:
		inFlow += deltaOrdered - backlash - n
		nonReturned += n
	case enums.StageReturned:
		inFlow += deltaOrdered - backlash + n
		nonReturned -= n
	case enums.StageCleaned:
		inFlow += deltaOrdered - backlash
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("stage %q cannot be reconciled", in.Key.Stage))
	}

	record := &models.ScanBatchRecord{
		DeviceCode:      in.DeviceCode,
		CategoryCode:    in.Key.CategoryCode,
		SupplierCode:    in.Key.SupplierCode,
		ClientCode:      in.Key.ClientPtr(),
		Stage:           in.Key.Stage,
		EventCount:      n,
		InFlowRemainder: inFlow,
		NonReturned:     nonReturned,
		TotalRemainder:  totalRemainder,
		LastEventAt:     in.LastEventAt,
	}
	if err := repo.CreateBatch(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist batch record")
	}

	if in.Key.Stage == enums.StageReceivedIn {
		if err := r.orders.FulfillReceived(ctx, tx, in.Key.CategoryCode, in.Key.SupplierCode, in.Key.ClientCode, n); err != nil {
			return nil, err
		}
	}

	if r.logg != nil {
		ctx = r.logg.WithFields(ctx, map[string]any{
			"category_code":     in.Key.CategoryCode,
			"supplier_code":     in.Key.SupplierCode,
			"stage":             in.Key.Stage,
			"event_count":       n,
			"in_flow_remainder": inFlow,
			"total_remainder":   totalRemainder,
		})
		r.logg.Info(ctx, "reconciled scan group")
	}
	return record, nil
}

// baseline returns the flow counters the stage update starts from. With no
// prior snapshot the pool starts at its full remainder with nothing loaned
// out.
func (r *Reconciler) baseline(prior *models.ScanBatchRecord, totalRemainder int) (inFlow, nonReturned int, stage enums.Stage) {
	if prior == nil {
		return totalRemainder, 0, ""
	}
	return prior.InFlowRemainder, prior.NonReturned, prior.Stage
}

func (r *Reconciler) discardedTotal(ctx context.Context, repo Repository, key GroupKey) (int, error) {
	var (
		total int
		err   error
	)
	if r.policy == enums.DiscardPolicyPerClient && key.ClientCode != "" {
		total, err = repo.CountClientDiscards(ctx, key.CategoryCode, key.SupplierCode, key.ClientCode)
	} else {
		total, err = repo.CountDiscards(ctx, key.CategoryCode, key.SupplierCode)
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count discards")
	}
	return total, nil
}
