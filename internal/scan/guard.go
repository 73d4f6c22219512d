package scan

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

// GuardAction is the duplicate guard's verdict for one group.
type GuardAction string

const (
	// GuardProceed lets the group through to reconciliation.
	GuardProceed GuardAction = "proceed"
	// GuardCorrect treats the group as a resubmission inside the correction
	// window; the prior batch's event count is amended in place.
	GuardCorrect GuardAction = "correct"
	// GuardDrop rejects the group silently; the window has lapsed.
	GuardDrop GuardAction = "drop"
)

// GuardDecision carries the action plus, for corrections, the batch being
// amended.
type GuardDecision struct {
	Action GuardAction
	Prior  *models.ScanBatchRecord
}

// Guard suppresses duplicate group submissions. A group is a duplicate when
// every counted item in it already has a history entry for its exact
// (serial, category, supplier, client, stage, cycle) key.
type Guard struct {
	repo   Repository
	window time.Duration
	now    func() time.Time
	logg   *logger.Logger
}

// NewGuard builds a duplicate guard with the given correction window.
func NewGuard(repo Repository, window time.Duration, logg *logger.Logger) (*Guard, error) {
	if repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	return &Guard{repo: repo, window: window, now: time.Now, logg: logg}, nil
}

// Check classifies the group. Groups with no counted items proceed; they
// carry nothing the history ledger could have seen before.
func (g *Guard) Check(ctx context.Context, tx *gorm.DB, key GroupKey, results []ItemResult) (GuardDecision, error) {
	repo := g.repo.WithTx(tx)

	seenAll := false
	for _, result := range results {
		if !result.Counted() {
			continue
		}
		exists, err := repo.HistoryExists(ctx, historyKeyFor(key, result))
		if err != nil {
			return GuardDecision{}, err
		}
		if !exists {
			return GuardDecision{Action: GuardProceed}, nil
		}
		seenAll = true
	}
	if !seenAll {
		return GuardDecision{Action: GuardProceed}, nil
	}

	prior, err := repo.LatestGroupBatch(ctx, key)
	if err != nil {
		return GuardDecision{}, err
	}
	if prior != nil && g.now().Sub(prior.CreatedAt) <= g.window {
		return GuardDecision{Action: GuardCorrect, Prior: prior}, nil
	}

	if g.logg != nil {
		ctx = g.logg.WithFields(ctx, map[string]any{
			"category_code": key.CategoryCode,
			"supplier_code": key.SupplierCode,
			"client_code":   key.ClientCode,
			"stage":         key.Stage,
		})
		g.logg.Warn(ctx, "dropping duplicate scan group outside correction window")
	}
	return GuardDecision{Action: GuardDrop}, nil
}

// Correct amends the prior batch's event count to the resubmitted group's
// count and refreshes its last-seen timestamp. No new batch or history rows
// are written.
func (g *Guard) Correct(ctx context.Context, tx *gorm.DB, prior *models.ScanBatchRecord, eventCount int, lastEventAt time.Time) error {
	return g.repo.WithTx(tx).UpdateBatchEventCount(ctx, prior.ID, eventCount, lastEventAt)
}

func historyKeyFor(key GroupKey, result ItemResult) HistoryKey {
	return HistoryKey{
		SerialCode:   result.Item.SerialCode,
		CategoryCode: key.CategoryCode,
		SupplierCode: key.SupplierCode,
		ClientCode:   key.ClientCode,
		Stage:        key.Stage,
		Cycle:        result.Item.Cycle,
	}
}
