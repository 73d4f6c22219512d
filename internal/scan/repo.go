package scan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db"
	"github.com/circularlabs/rfid-trace/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a scan repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindItemBySerial(ctx context.Context, serialCode string) (*models.Item, error) {
	var item models.Item
	err := r.db.WithContext(ctx).
		Where("serial_code = ?", serialCode).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SaveItem(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) HasDiscard(ctx context.Context, categoryCode, serialCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscardRecord{}).
		Where("category_code = ? AND serial_code = ?", categoryCode, serialCode).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CountDiscards(ctx context.Context, categoryCode, supplierCode string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscardRecord{}).
		Where("category_code = ? AND supplier_code = ?", categoryCode, supplierCode).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repository) CountClientDiscards(ctx context.Context, categoryCode, supplierCode, clientCode string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DiscardRecord{}).
		Where("category_code = ? AND supplier_code = ? AND client_code = ?", categoryCode, supplierCode, clientCode).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repository) CreateDiscard(ctx context.Context, record *models.DiscardRecord) (bool, error) {
	exists, err := r.HasDiscard(ctx, record.CategoryCode, record.SerialCode)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_discards_category_serial") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) LatestBatch(ctx context.Context, categoryCode, supplierCode string) (*models.ScanBatchRecord, error) {
	var record models.ScanBatchRecord
	err := r.db.WithContext(ctx).
		Where("category_code = ? AND supplier_code = ?", categoryCode, supplierCode).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) LatestGroupBatch(ctx context.Context, key GroupKey) (*models.ScanBatchRecord, error) {
	query := r.db.WithContext(ctx).
		Where("category_code = ? AND supplier_code = ? AND stage = ?", key.CategoryCode, key.SupplierCode, key.Stage)
	if key.ClientCode == "" {
		query = query.Where("client_code IS NULL OR client_code = ''")
	} else {
		query = query.Where("client_code = ?", key.ClientCode)
	}

	var record models.ScanBatchRecord
	err := query.Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) CreateBatch(ctx context.Context, record *models.ScanBatchRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) UpdateBatchEventCount(ctx context.Context, batchID uuid.UUID, eventCount int, lastEventAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ScanBatchRecord{}).
		Where("id = ?", batchID).
		Updates(map[string]any{
			"event_count":   eventCount,
			"last_event_at": lastEventAt,
		}).Error
}

func (r *repository) ListBatches(ctx context.Context, categoryCode, supplierCode string, limit int) ([]models.ScanBatchRecord, error) {
	var records []models.ScanBatchRecord
	err := r.db.WithContext(ctx).
		Where("category_code = ? AND supplier_code = ?", categoryCode, supplierCode).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) HistoryExists(ctx context.Context, key HistoryKey) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ItemHistoryEntry{}).
		Where("serial_code = ? AND category_code = ? AND supplier_code = ? AND stage = ? AND cycle = ?",
			key.SerialCode, key.CategoryCode, key.SupplierCode, key.Stage, key.Cycle)
	if key.ClientCode == "" {
		query = query.Where("client_code IS NULL OR client_code = ''")
	} else {
		query = query.Where("client_code = ?", key.ClientCode)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateHistory(ctx context.Context, entry *models.ItemHistoryEntry) (bool, error) {
	client := ""
	if entry.ClientCode != nil {
		client = *entry.ClientCode
	}
	exists, err := r.HistoryExists(ctx, HistoryKey{
		SerialCode:   entry.SerialCode,
		CategoryCode: entry.CategoryCode,
		SupplierCode: entry.SupplierCode,
		ClientCode:   client,
		Stage:        entry.Stage,
		Cycle:        entry.Cycle,
	})
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_history_dedup") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
