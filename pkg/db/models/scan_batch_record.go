package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/enums"
)

// ScanBatchRecord is the aggregate snapshot produced by one accepted
// group-level reconciliation. Rows are never mutated after creation except
// for EventCount, which the duplicate guard corrects inside the correction
// window.
type ScanBatchRecord struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	DeviceCode   string      `gorm:"column:device_code;not null"`
	CategoryCode string      `gorm:"column:category_code;not null;index:ix_batches_category_supplier"`
	SupplierCode string      `gorm:"column:supplier_code;not null;index:ix_batches_category_supplier"`
	ClientCode   *string     `gorm:"column:client_code"`
	Stage        enums.Stage `gorm:"column:stage;type:text;not null"`

	EventCount      int `gorm:"column:event_count;not null"`
	InFlowRemainder int `gorm:"column:in_flow_remainder;not null"`
	NonReturned     int `gorm:"column:non_returned_count;not null"`
	TotalRemainder  int `gorm:"column:total_remainder;not null"`

	LastEventAt time.Time          `gorm:"column:last_event_at;not null"`
	Entries     []ItemHistoryEntry `gorm:"foreignKey:BatchID"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime;index:ix_batches_created_at"`
}

func (ScanBatchRecord) TableName() string {
	return "scan_batch_records"
}

// BeforeCreate assigns a client-side UUID so inserts work the same on
// postgres and the sqlite test databases.
func (m *ScanBatchRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
