package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrders(ctx context.Context, orders []models.ClientOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&orders).Error
}

func (r *repository) SumOrderedQuantity(ctx context.Context, categoryCode, supplierCode string) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.ClientOrder{}).
		Select("SUM(quantity)").
		Where("category_code = ? AND supplier_code = ?", categoryCode, supplierCode).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) FindPendingOrders(ctx context.Context, categoryCode, supplierCode, clientCode string) ([]models.ClientOrder, error) {
	var orders []models.ClientOrder
	err := r.db.WithContext(ctx).
		Where("category_code = ? AND supplier_code = ? AND client_code = ? AND fulfilled_at IS NULL",
			categoryCode, supplierCode, clientCode).
		Order("ordered_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) MarkFulfilled(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ClientOrder{}).
		Where("id = ?", orderID).
		Update("fulfilled_at", at).Error
}
