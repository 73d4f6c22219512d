package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
)

// Repository defines persistence operations for the client order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrders(ctx context.Context, orders []models.ClientOrder) error
	SumOrderedQuantity(ctx context.Context, categoryCode, supplierCode string) (int, error)
	FindPendingOrders(ctx context.Context, categoryCode, supplierCode, clientCode string) ([]models.ClientOrder, error)
	MarkFulfilled(ctx context.Context, orderID uuid.UUID, at time.Time) error
}
