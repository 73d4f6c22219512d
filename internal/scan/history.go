package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
)

// Recorder appends history entries for every counted item in a reconciled
// group. Inserts are idempotent on the de-duplication tuple, so replaying a
// group never doubles the ledger.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

// NewRecorder builds the history recorder.
func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("scan repository required")
	}
	return &Recorder{repo: repo, now: time.Now}, nil
}

// Record writes one entry per counted result and attaches it to the batch.
// It returns how many entries were newly created; pre-existing tuples are
// left untouched.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, key GroupKey, batchID uuid.UUID, results []ItemResult) (int, error) {
	repo := r.repo.WithTx(tx)

	created := 0
	stamp := r.now()
	for _, result := range results {
		if !result.Counted() {
			continue
		}
		id := batchID
		entry := &models.ItemHistoryEntry{
			RFIDTagCode:  result.Item.RFIDTagCode,
			SerialCode:   result.Item.SerialCode,
			CategoryCode: key.CategoryCode,
			SupplierCode: key.SupplierCode,
			ClientCode:   key.ClientPtr(),
			Stage:        key.Stage,
			Cycle:        result.Item.Cycle,
			EventAt:      stamp,
			BatchID:      &id,
		}
		inserted, err := repo.CreateHistory(ctx, entry)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}
	return created, nil
}
