package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/internal/orders"
	"github.com/circularlabs/rfid-trace/pkg/config"
	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/lock"
	"github.com/circularlabs/rfid-trace/pkg/logger"
	"github.com/circularlabs/rfid-trace/pkg/metrics"
)

// Service runs the scan reconciliation pipeline: filter, partitioned
// lifecycle resolution, duplicate guarding, aggregate reconciliation and
// history recording, serialized per (category, supplier) pool.
type Service interface {
	Process(ctx context.Context, stage enums.Stage, submission Submission) (BatchSummary, error)
	Discard(ctx context.Context, submission Submission) (BatchSummary, error)
	RecentBatches(ctx context.Context, categoryCode, supplierCode string, limit int) ([]BatchView, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	DB      TxRunner
	Repo    Repository
	Orders  orders.Ledger
	Locker  lock.KeyLocker
	Scan    config.ScanConfig
	Logger  *logger.Logger
	Metrics *metrics.ScanMetrics
}

type service struct {
	dbc    TxRunner
	repo   Repository
	orders orders.Ledger
	locker lock.KeyLocker

	filter      *Filter
	resolver    *Resolver
	reconciler  *Reconciler
	guard       *Guard
	recorder    *Recorder
	partitioner *Partitioner

	logg  *logger.Logger
	stats *metrics.ScanMetrics
	now   func() time.Time
}

// NewService wires the pipeline from its parts.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("key locker required")
	}
	if err := params.Scan.Validate(); err != nil {
		return nil, err
	}

	reconciler, err := NewReconciler(params.Repo, params.Orders, params.Scan.DiscardPolicyValue(), params.Logger)
	if err != nil {
		return nil, err
	}
	guard, err := NewGuard(params.Repo, params.Scan.CorrectionWindow, params.Logger)
	if err != nil {
		return nil, err
	}
	recorder, err := NewRecorder(params.Repo)
	if err != nil {
		return nil, err
	}
	partitioner, err := NewPartitioner(params.Scan.PartitionThreshold, params.Scan.PartitionFanout, params.Metrics)
	if err != nil {
		return nil, err
	}

	return &service{
		dbc:         params.DB,
		repo:        params.Repo,
		orders:      params.Orders,
		locker:      params.Locker,
		filter:      NewFilter(params.Repo, params.Scan.DeviceMarker),
		resolver:    NewResolver(params.Repo, params.Scan.CorrectionWindow),
		reconciler:  reconciler,
		guard:       guard,
		recorder:    recorder,
		partitioner: partitioner,
		logg:        params.Logger,
		stats:       params.Metrics,
		now:         time.Now,
	}, nil
}

// Process runs one submission through the four-stage pipeline.
func (s *service) Process(ctx context.Context, stage enums.Stage, submission Submission) (BatchSummary, error) {
	start := s.now()
	defer func() {
		if s.stats != nil {
			s.stats.ObserveBatch(string(stage), s.now().Sub(start))
		}
	}()
	ctx = s.requestContext(ctx, stage, submission)

	if stage == enums.StageShippedOut {
		if err := s.recordOrders(ctx, submission); err != nil {
			return BatchSummary{}, err
		}
	}

	filtered, err := s.filter.Apply(ctx, submission.Events)
	if err != nil {
		return BatchSummary{}, err
	}
	summary := BatchSummary{Stage: stage, Outcomes: append([]ItemOutcomeView(nil), filtered.Dropped...)}
	if len(filtered.Kept) == 0 {
		s.countOutcomes(stage, summary.Outcomes)
		return summary, nil
	}

	release, err := lock.AcquireAll(ctx, s.locker, s.lockKeys(filtered.Kept, submission.SupplierCode))
	if err != nil {
		return BatchSummary{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "acquire reconciliation locks")
	}
	defer release()

	results, err := s.partitioner.Run(ctx, filtered.Kept, func(ctx context.Context, part []Event) ([]ItemResult, error) {
		resolved := make([]ItemResult, 0, len(part))
		for _, event := range part {
			result, err := s.resolver.Resolve(ctx, event, stage, submission.SupplierCode, submission.ClientCode)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, result)
		}
		return resolved, nil
	})
	if err != nil {
		return BatchSummary{}, err
	}

	groups := make(map[GroupKey][]ItemResult)
	for _, result := range results {
		if !result.Counted() {
			summary.Outcomes = append(summary.Outcomes, skipOutcome(result))
			continue
		}
		key := groupKeyFor(result, submission.SupplierCode, stage)
		groups[key] = append(groups[key], result)
	}

	for _, key := range sortedKeys(groups) {
		outcomes, err := s.reconcileGroup(ctx, key, groups[key], submission, filtered.DiscardAdjustments[key.CategoryCode])
		if err != nil {
			return BatchSummary{}, err
		}
		summary.Outcomes = append(summary.Outcomes, outcomes...)
	}

	for _, outcome := range summary.Outcomes {
		if outcome.Outcome == enums.ItemOutcomeAccepted {
			summary.Accepted++
		}
	}
	s.countOutcomes(stage, summary.Outcomes)
	return summary, nil
}

// reconcileGroup runs guard, reconciler and recorder for one group inside a
// single transaction. The caller holds the group's pool lock.
func (s *service) reconcileGroup(ctx context.Context, key GroupKey, results []ItemResult, submission Submission, discardAdjustment int) ([]ItemOutcomeView, error) {
	eventCount := 0
	for _, result := range results {
		if result.Counted() {
			eventCount++
		}
	}

	var outcomes []ItemOutcomeView
	err := s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		decision, err := s.guard.Check(ctx, tx, key, results)
		if err != nil {
			return err
		}

		switch decision.Action {
		case GuardDrop:
			outcomes = duplicateOutcomes(results)
			return nil
		case GuardCorrect:
			if err := s.guard.Correct(ctx, tx, decision.Prior, eventCount, s.now()); err != nil {
				return err
			}
			if s.stats != nil {
				s.stats.IncCorrection()
			}
			outcomes = duplicateOutcomes(results)
			return nil
		}

		batch, err := s.reconciler.Reconcile(ctx, tx, GroupInput{
			Key:               key,
			DeviceCode:        submission.DeviceCode,
			EventCount:        eventCount,
			DiscardAdjustment: discardAdjustment,
			LastEventAt:       s.now(),
		})
		if err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx, key, batch.ID, results); err != nil {
			return err
		}
		outcomes = acceptedOutcomes(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Discard marks items permanently discarded. It sits outside the four-stage
// flow: no batch record is produced, only discard ledger rows and a terminal
// item stage.
func (s *service) Discard(ctx context.Context, submission Submission) (BatchSummary, error) {
	start := s.now()
	defer func() {
		if s.stats != nil {
			s.stats.ObserveBatch(string(enums.StageDiscarded), s.now().Sub(start))
		}
	}()
	ctx = s.requestContext(ctx, enums.StageDiscarded, submission)

	summary := BatchSummary{Stage: enums.StageDiscarded}
	kept := make([]Event, 0, len(submission.Events))
	for _, event := range submission.Events {
		if !s.filter.Accepts(event) {
			summary.Outcomes = append(summary.Outcomes, ItemOutcomeView{
				SerialCode: event.SerialCode,
				Outcome:    enums.ItemOutcomeSkippedUnknownDevice,
			})
			continue
		}
		kept = append(kept, event)
	}
	if len(kept) == 0 {
		s.countOutcomes(enums.StageDiscarded, summary.Outcomes)
		return summary, nil
	}

	release, err := lock.AcquireAll(ctx, s.locker, s.lockKeys(kept, submission.SupplierCode))
	if err != nil {
		return BatchSummary{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "acquire reconciliation locks")
	}
	defer release()

	err = s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stamp := s.now()
		for _, event := range kept {
			created, err := repo.CreateDiscard(ctx, &models.DiscardRecord{
				CategoryCode: event.CategoryCode,
				SerialCode:   event.SerialCode,
				SupplierCode: submission.SupplierCode,
				ClientCode:   submission.ClientCode,
				DiscardedAt:  stamp,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append discard record")
			}
			if !created {
				summary.Outcomes = append(summary.Outcomes, ItemOutcomeView{
					SerialCode: event.SerialCode,
					Outcome:    enums.ItemOutcomeSkippedDiscarded,
				})
				continue
			}
			item, err := repo.FindItemBySerial(ctx, event.SerialCode)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up item")
			}
			if item != nil && item.Stage != enums.StageDiscarded {
				item.Stage = enums.StageDiscarded
				item.LastEventAt = stamp
				if err := repo.SaveItem(ctx, item); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item discarded")
				}
			}
			summary.Outcomes = append(summary.Outcomes, ItemOutcomeView{
				SerialCode: event.SerialCode,
				Outcome:    enums.ItemOutcomeAccepted,
			})
			summary.Accepted++
		}
		return nil
	})
	if err != nil {
		return BatchSummary{}, err
	}
	s.countOutcomes(enums.StageDiscarded, summary.Outcomes)
	return summary, nil
}

// RecentBatches lists stored aggregate snapshots, newest first.
func (s *service) RecentBatches(ctx context.Context, categoryCode, supplierCode string, limit int) ([]BatchView, error) {
	if limit <= 0 {
		limit = 20
	}
	records, err := s.repo.ListBatches(ctx, categoryCode, supplierCode, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
	}
	views := make([]BatchView, 0, len(records))
	for _, record := range records {
		views = append(views, BatchView{
			DeviceCode:      record.DeviceCode,
			CategoryCode:    record.CategoryCode,
			SupplierCode:    record.SupplierCode,
			ClientCode:      record.ClientCode,
			Stage:           record.Stage,
			EventCount:      record.EventCount,
			InFlowRemainder: record.InFlowRemainder,
			NonReturned:     record.NonReturned,
			TotalRemainder:  record.TotalRemainder,
			CreatedAt:       record.CreatedAt,
		})
	}
	return views, nil
}

// recordOrders persists the ordered quantities accompanying an outbound
// shipment. They commit independently of reconciliation so the ledger read
// inside the same submission sees them.
func (s *service) recordOrders(ctx context.Context, submission Submission) error {
	if len(submission.Orders) == 0 {
		return nil
	}
	client := ""
	if submission.ClientCode != nil {
		client = *submission.ClientCode
	}
	stamp := s.now()
	rows := make([]models.ClientOrder, 0, len(submission.Orders))
	for _, line := range submission.Orders {
		if line.Quantity <= 0 {
			continue
		}
		rows = append(rows, models.ClientOrder{
			CategoryCode: line.CategoryCode,
			SupplierCode: submission.SupplierCode,
			ClientCode:   client,
			Quantity:     line.Quantity,
			OrderedAt:    stamp,
		})
	}
	return s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.RecordOrders(ctx, tx, rows)
	})
}

func (s *service) lockKeys(events []Event, supplierCode string) []string {
	keys := make([]string, 0, len(events))
	for _, event := range events {
		keys = append(keys, GroupKey{CategoryCode: event.CategoryCode, SupplierCode: supplierCode}.LockKey())
	}
	return keys
}

func (s *service) requestContext(ctx context.Context, stage enums.Stage, submission Submission) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithDevice(ctx, submission.DeviceCode)
	ctx = s.logg.WithSupplier(ctx, submission.SupplierCode)
	return s.logg.WithStage(ctx, string(stage))
}

func (s *service) countOutcomes(stage enums.Stage, outcomes []ItemOutcomeView) {
	if s.stats == nil {
		return
	}
	for _, outcome := range outcomes {
		s.stats.IncEvent(string(stage), string(outcome.Outcome))
	}
}

// groupKeyFor derives group membership after resolution: client attribution
// may have changed during the transition (Returned clears it).
func groupKeyFor(result ItemResult, supplierCode string, stage enums.Stage) GroupKey {
	client := ""
	if result.Item != nil && result.Item.ClientCode != nil {
		client = *result.Item.ClientCode
	}
	return GroupKey{
		CategoryCode: result.Event.CategoryCode,
		SupplierCode: supplierCode,
		ClientCode:   client,
		Stage:        stage,
	}
}

func sortedKeys(groups map[GroupKey][]ItemResult) []GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CategoryCode != keys[j].CategoryCode {
			return keys[i].CategoryCode < keys[j].CategoryCode
		}
		return keys[i].ClientCode < keys[j].ClientCode
	})
	return keys
}

func skipOutcome(result ItemResult) ItemOutcomeView {
	view := ItemOutcomeView{SerialCode: result.Event.SerialCode}
	switch result.Reason {
	case enums.SkipReasonDiscarded:
		view.Outcome = enums.ItemOutcomeSkippedDiscarded
	case enums.SkipReasonStaleDuplicate:
		view.Outcome = enums.ItemOutcomeSkippedDuplicate
	case enums.SkipReasonUnknownDevice:
		view.Outcome = enums.ItemOutcomeSkippedUnknownDevice
	default:
		view.Outcome = enums.ItemOutcomeSkippedNoPredecessor
	}
	return view
}

func duplicateOutcomes(results []ItemResult) []ItemOutcomeView {
	outcomes := make([]ItemOutcomeView, 0, len(results))
	for _, result := range results {
		outcomes = append(outcomes, ItemOutcomeView{
			SerialCode: result.Event.SerialCode,
			Outcome:    enums.ItemOutcomeSkippedDuplicate,
		})
	}
	return outcomes
}

func acceptedOutcomes(results []ItemResult) []ItemOutcomeView {
	outcomes := make([]ItemOutcomeView, 0, len(results))
	for _, result := range results {
		view := ItemOutcomeView{SerialCode: result.Event.SerialCode}
		switch result.Disposition {
		case enums.DispositionReaffirmed:
			view.Outcome = enums.ItemOutcomeSkippedDuplicate
		default:
			view.Outcome = enums.ItemOutcomeAccepted
			cycle := result.Item.Cycle
			view.Cycle = &cycle
		}
		outcomes = append(outcomes, view)
	}
	return outcomes
}
