package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscardRecord marks a (category, serial) pair as permanently discarded.
// Existence is a terminal fact: a discarded serial never re-enters the
// lifecycle.
type DiscardRecord struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CategoryCode string    `gorm:"column:category_code;not null;uniqueIndex:ux_discards_category_serial"`
	SerialCode   string    `gorm:"column:serial_code;not null;uniqueIndex:ux_discards_category_serial"`
	SupplierCode string    `gorm:"column:supplier_code;not null;index:ix_discards_category_supplier"`
	ClientCode   *string   `gorm:"column:client_code"`
	DiscardedAt  time.Time `gorm:"column:discarded_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DiscardRecord) TableName() string {
	return "discard_records"
}

// BeforeCreate assigns a client-side UUID so inserts work the same on
// postgres and the sqlite test databases.
func (m *DiscardRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
