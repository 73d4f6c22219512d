package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientOrder is one ordered quantity placed by a client against a
// (category, supplier) pool. Ordered totals feed reconciliation; fulfillment
// stamps are written by the greedy walk on received-in scans.
type ClientOrder struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CategoryCode string     `gorm:"column:category_code;not null;index:ix_orders_category_supplier"`
	SupplierCode string     `gorm:"column:supplier_code;not null;index:ix_orders_category_supplier"`
	ClientCode   string     `gorm:"column:client_code;not null"`
	Quantity     int        `gorm:"column:quantity;not null"`
	FulfilledAt  *time.Time `gorm:"column:fulfilled_at"`
	OrderedAt    time.Time  `gorm:"column:ordered_at;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (ClientOrder) TableName() string {
	return "client_orders"
}

// Fulfilled reports whether the order has been stamped by the fulfillment walk.
func (o ClientOrder) Fulfilled() bool {
	return o.FulfilledAt != nil
}

// BeforeCreate assigns a client-side UUID so inserts work the same on
// postgres and the sqlite test databases.
func (m *ClientOrder) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
