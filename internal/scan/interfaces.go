package scan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
)

// TxRunner executes a closure inside one storage transaction. *db.Client
// satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository defines persistence operations for items, history entries,
// batch snapshots and the discard ledger.
//
// Lookup methods return (nil, nil) when no row matches; callers treat
// absence as a normal condition, not an error.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindItemBySerial(ctx context.Context, serialCode string) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	SaveItem(ctx context.Context, item *models.Item) error

	HasDiscard(ctx context.Context, categoryCode, serialCode string) (bool, error)
	CountDiscards(ctx context.Context, categoryCode, supplierCode string) (int, error)
	CountClientDiscards(ctx context.Context, categoryCode, supplierCode, clientCode string) (int, error)
	// CreateDiscard reports false when a record already covered the pair.
	CreateDiscard(ctx context.Context, record *models.DiscardRecord) (bool, error)

	LatestBatch(ctx context.Context, categoryCode, supplierCode string) (*models.ScanBatchRecord, error)
	LatestGroupBatch(ctx context.Context, key GroupKey) (*models.ScanBatchRecord, error)
	CreateBatch(ctx context.Context, record *models.ScanBatchRecord) error
	UpdateBatchEventCount(ctx context.Context, batchID uuid.UUID, eventCount int, lastEventAt time.Time) error
	ListBatches(ctx context.Context, categoryCode, supplierCode string, limit int) ([]models.ScanBatchRecord, error)

	HistoryExists(ctx context.Context, key HistoryKey) (bool, error)
	// CreateHistory reports false when the de-duplication key already existed.
	CreateHistory(ctx context.Context, entry *models.ItemHistoryEntry) (bool, error)
}
