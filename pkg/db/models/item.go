package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/enums"
)

// Item is the current-state projection of one physical RFID-tagged unit.
// There is at most one row per serial code; history lives in ItemHistoryEntry.
type Item struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	RFIDTagCode  string      `gorm:"column:rfid_tag_code;not null"`
	SerialCode   string      `gorm:"column:serial_code;not null;uniqueIndex:ux_items_serial"`
	CategoryCode string      `gorm:"column:category_code;not null;index:ix_items_category_supplier"`
	SupplierCode string      `gorm:"column:supplier_code;not null;index:ix_items_category_supplier"`
	ClientCode   *string     `gorm:"column:client_code"`
	Stage        enums.Stage `gorm:"column:stage;type:text;not null"`
	Cycle        int         `gorm:"column:cycle;not null;default:0"`
	LastEventAt  time.Time   `gorm:"column:last_event_at;not null"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}

// HasClient reports whether the item is currently attributed to a client.
func (i Item) HasClient() bool {
	return i.ClientCode != nil && *i.ClientCode != ""
}

// BeforeCreate assigns a client-side UUID so inserts work the same on
// postgres and the sqlite test databases.
func (m *Item) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
