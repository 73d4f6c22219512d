package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/lock"
)

// stubRepo is an in-memory Repository shared by the pipeline tests.
type stubRepo struct {
	mu        sync.Mutex
	items     map[string]*models.Item
	discards  map[string]*models.DiscardRecord
	batches   []*models.ScanBatchRecord
	histories map[HistoryKey]*models.ItemHistoryEntry

	findItemErr error
	batchErr    error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		items:     make(map[string]*models.Item),
		discards:  make(map[string]*models.DiscardRecord),
		histories: make(map[HistoryKey]*models.ItemHistoryEntry),
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindItemBySerial(ctx context.Context, serialCode string) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findItemErr != nil {
		return nil, s.findItemErr
	}
	item, ok := s.items[serialCode]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (s *stubRepo) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = uuid.New()
	copied := *item
	s.items[item.SerialCode] = &copied
	return nil
}

func (s *stubRepo) SaveItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.SerialCode] = &copied
	return nil
}

func discardKey(categoryCode, serialCode string) string {
	return categoryCode + "|" + serialCode
}

func (s *stubRepo) HasDiscard(ctx context.Context, categoryCode, serialCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.discards[discardKey(categoryCode, serialCode)]
	return ok, nil
}

func (s *stubRepo) CountDiscards(ctx context.Context, categoryCode, supplierCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.discards {
		if record.CategoryCode == categoryCode && record.SupplierCode == supplierCode {
			count++
		}
	}
	return count, nil
}

func (s *stubRepo) CountClientDiscards(ctx context.Context, categoryCode, supplierCode, clientCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.discards {
		if record.CategoryCode != categoryCode || record.SupplierCode != supplierCode {
			continue
		}
		if record.ClientCode != nil && *record.ClientCode == clientCode {
			count++
		}
	}
	return count, nil
}

func (s *stubRepo) CreateDiscard(ctx context.Context, record *models.DiscardRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := discardKey(record.CategoryCode, record.SerialCode)
	if _, ok := s.discards[key]; ok {
		return false, nil
	}
	record.ID = uuid.New()
	copied := *record
	s.discards[key] = &copied
	return true, nil
}

func (s *stubRepo) LatestBatch(ctx context.Context, categoryCode, supplierCode string) (*models.ScanBatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	for i := len(s.batches) - 1; i >= 0; i-- {
		record := s.batches[i]
		if record.CategoryCode == categoryCode && record.SupplierCode == supplierCode {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) LatestGroupBatch(ctx context.Context, key GroupKey) (*models.ScanBatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.batches) - 1; i >= 0; i-- {
		record := s.batches[i]
		client := ""
		if record.ClientCode != nil {
			client = *record.ClientCode
		}
		if record.CategoryCode == key.CategoryCode && record.SupplierCode == key.SupplierCode &&
			client == key.ClientCode && record.Stage == key.Stage {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CreateBatch(ctx context.Context, record *models.ScanBatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	record.ID = uuid.New()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	copied := *record
	s.batches = append(s.batches, &copied)
	return nil
}

func (s *stubRepo) UpdateBatchEventCount(ctx context.Context, batchID uuid.UUID, eventCount int, lastEventAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.batches {
		if record.ID == batchID {
			record.EventCount = eventCount
			record.LastEventAt = lastEventAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubRepo) ListBatches(ctx context.Context, categoryCode, supplierCode string, limit int) ([]models.ScanBatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScanBatchRecord
	for i := len(s.batches) - 1; i >= 0 && len(out) < limit; i-- {
		record := s.batches[i]
		if categoryCode != "" && record.CategoryCode != categoryCode {
			continue
		}
		if supplierCode != "" && record.SupplierCode != supplierCode {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *stubRepo) HistoryExists(ctx context.Context, key HistoryKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.histories[key]
	return ok, nil
}

func (s *stubRepo) CreateHistory(ctx context.Context, entry *models.ItemHistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client := ""
	if entry.ClientCode != nil {
		client = *entry.ClientCode
	}
	key := HistoryKey{
		SerialCode:   entry.SerialCode,
		CategoryCode: entry.CategoryCode,
		SupplierCode: entry.SupplierCode,
		ClientCode:   client,
		Stage:        entry.Stage,
		Cycle:        entry.Cycle,
	}
	if _, ok := s.histories[key]; ok {
		return false, nil
	}
	entry.ID = uuid.New()
	copied := *entry
	s.histories[key] = &copied
	return true, nil
}

// stubLedger fakes the order ledger.
type stubLedger struct {
	mu       sync.Mutex
	ordered  map[string]int
	recorded []models.ClientOrder
	fulfills []fulfillCall
}

type fulfillCall struct {
	categoryCode string
	supplierCode string
	clientCode   string
	quantity     int
}

func newStubLedger() *stubLedger {
	return &stubLedger{ordered: make(map[string]int)}
}

func (s *stubLedger) RecordOrders(ctx context.Context, tx *gorm.DB, orders []models.ClientOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, orders...)
	for _, order := range orders {
		s.ordered[order.CategoryCode+"|"+order.SupplierCode] += order.Quantity
	}
	return nil
}

func (s *stubLedger) OrderedTotal(ctx context.Context, categoryCode, supplierCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordered[categoryCode+"|"+supplierCode], nil
}

func (s *stubLedger) FulfillReceived(ctx context.Context, tx *gorm.DB, categoryCode, supplierCode, clientCode string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fulfills = append(s.fulfills, fulfillCall{
		categoryCode: categoryCode,
		supplierCode: supplierCode,
		clientCode:   clientCode,
		quantity:     quantity,
	})
	return nil
}

// stubTx runs the closure without a real transaction.
type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// stubLocker counts acquisitions without blocking.
type stubLocker struct {
	mu       sync.Mutex
	acquired []string
}

func (s *stubLocker) Acquire(ctx context.Context, key string) (lock.Release, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired = append(s.acquired, key)
	return func() {}, nil
}

func strPtr(v string) *string { return &v }
