package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/enums"
)

// ItemHistoryEntry is the append-only record of one accepted transition.
// The (serial, category, supplier, client, stage, cycle) tuple is the
// de-duplication key: at most one row may exist per tuple.
type ItemHistoryEntry struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	RFIDTagCode  string      `gorm:"column:rfid_tag_code;not null"`
	SerialCode   string      `gorm:"column:serial_code;not null;uniqueIndex:ux_history_dedup"`
	CategoryCode string      `gorm:"column:category_code;not null;uniqueIndex:ux_history_dedup"`
	SupplierCode string      `gorm:"column:supplier_code;not null;uniqueIndex:ux_history_dedup"`
	ClientCode   *string     `gorm:"column:client_code;uniqueIndex:ux_history_dedup"`
	Stage        enums.Stage `gorm:"column:stage;type:text;not null;uniqueIndex:ux_history_dedup"`
	Cycle        int         `gorm:"column:cycle;not null;uniqueIndex:ux_history_dedup"`
	EventAt      time.Time   `gorm:"column:event_at;not null"`
	BatchID      *uuid.UUID  `gorm:"column:batch_id;type:uuid;index:ix_history_batch"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (ItemHistoryEntry) TableName() string {
	return "item_history_entries"
}

// BeforeCreate assigns a client-side UUID so inserts work the same on
// postgres and the sqlite test databases.
func (m *ItemHistoryEntry) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
