package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	pkgerrors "github.com/circularlabs/rfid-trace/pkg/errors"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

// Ledger exposes the read side of the order ledger plus the greedy
// fulfillment walk triggered by received-in reconciliations.
type Ledger interface {
	RecordOrders(ctx context.Context, tx *gorm.DB, orders []models.ClientOrder) error
	OrderedTotal(ctx context.Context, categoryCode, supplierCode string) (int, error)
	FulfillReceived(ctx context.Context, tx *gorm.DB, categoryCode, supplierCode, clientCode string, quantity int) error
}

type ledger struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewLedger builds the order ledger service.
func NewLedger(repo Repository, logg *logger.Logger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &ledger{repo: repo, logg: logg, now: time.Now}, nil
}

func (l *ledger) RecordOrders(ctx context.Context, tx *gorm.DB, orders []models.ClientOrder) error {
	if len(orders) == 0 {
		return nil
	}
	if err := l.repo.WithTx(tx).CreateOrders(ctx, orders); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record client orders")
	}
	return nil
}

// OrderedTotal reads the summed ordered quantity with a capped retry: the
// read is idempotent, so transient storage failures are worth absorbing.
func (l *ledger) OrderedTotal(ctx context.Context, categoryCode, supplierCode string) (int, error) {
	var total int
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sum, err := l.repo.SumOrderedQuantity(ctx, categoryCode, supplierCode)
		if err != nil {
			return retry.RetryableError(err)
		}
		total = sum
		return nil
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ordered quantity")
	}
	return total, nil
}

// FulfillReceived walks the client's pending orders oldest-first and stamps
// them fulfilled until the cumulative quantity covers the received count.
// Partial and overflow mismatches are logged, never rejected.
func (l *ledger) FulfillReceived(ctx context.Context, tx *gorm.DB, categoryCode, supplierCode, clientCode string, quantity int) error {
	if quantity <= 0 {
		return nil
	}

	repo := l.repo.WithTx(tx)
	pending, err := repo.FindPendingOrders(ctx, categoryCode, supplierCode, clientCode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending orders")
	}

	remaining := quantity
	stamp := l.now()
	for _, order := range pending {
		if remaining <= 0 {
			break
		}
		if err := repo.MarkFulfilled(ctx, order.ID, stamp); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order fulfilled")
		}
		remaining -= order.Quantity
	}

	if remaining > 0 && l.logg != nil {
		ctx = l.logg.WithFields(ctx, map[string]any{
			"category_code": categoryCode,
			"supplier_code": supplierCode,
			"client_code":   clientCode,
			"received":      quantity,
			"uncovered":     remaining,
		})
		l.logg.Warn(ctx, "received quantity exceeds pending orders")
	}
	if remaining < 0 && l.logg != nil {
		ctx = l.logg.WithFields(ctx, map[string]any{
			"category_code": categoryCode,
			"supplier_code": supplierCode,
			"client_code":   clientCode,
			"received":      quantity,
			"overflow":      -remaining,
		})
		l.logg.Warn(ctx, "fulfillment overshot received quantity")
	}
	return nil
}
