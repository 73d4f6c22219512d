package scan

import (
	"time"

	"github.com/circularlabs/rfid-trace/pkg/db/models"
	"github.com/circularlabs/rfid-trace/pkg/enums"
)

// Event is one raw RFID read reported by a field device.
type Event struct {
	RFIDTagCode     string
	DeviceFilterTag string
	CategoryCode    string
	SerialCode      string
}

// OrderLine carries an ordered quantity accompanying an outbound shipment.
type OrderLine struct {
	CategoryCode string
	Quantity     int
}

// Submission is one scan batch from a device, already mapped from the wire.
type Submission struct {
	DeviceCode   string
	SupplierCode string
	ClientCode   *string
	Events       []Event
	Orders       []OrderLine
}

// ItemResult pairs one event with the item row it resolved to and how the
// resolver classified it.
type ItemResult struct {
	Event       Event
	Item        *models.Item
	Disposition enums.Disposition
	Reason      enums.SkipReason
}

// Counted reports whether the result contributes to its group's event count.
func (r ItemResult) Counted() bool {
	return r.Disposition.Counted()
}

// GroupKey identifies one reconciliation group. ClientCode is empty when the
// items are unattributed (the model keeps a *string; the composite key needs
// a comparable form).
type GroupKey struct {
	CategoryCode string
	SupplierCode string
	ClientCode   string
	Stage        enums.Stage
}

// LockKey is the serialization key: one shared inventory pool exists per
// (category, supplier) regardless of client or stage.
func (k GroupKey) LockKey() string {
	return k.CategoryCode + "|" + k.SupplierCode
}

// ClientPtr converts the comparable key form back to the model form.
func (k GroupKey) ClientPtr() *string {
	if k.ClientCode == "" {
		return nil
	}
	client := k.ClientCode
	return &client
}

// HistoryKey is the de-duplication tuple for ItemHistoryEntry rows.
type HistoryKey struct {
	SerialCode   string
	CategoryCode string
	SupplierCode string
	ClientCode   string
	Stage        enums.Stage
	Cycle        int
}

// ItemOutcomeView is the per-item element of a submission response.
type ItemOutcomeView struct {
	SerialCode string            `json:"serial_code"`
	Outcome    enums.ItemOutcome `json:"outcome"`
	Cycle      *int              `json:"cycle,omitempty"`
}

// BatchSummary is the machine-readable result of one submission.
type BatchSummary struct {
	Stage    enums.Stage       `json:"stage"`
	Accepted int               `json:"accepted"`
	Outcomes []ItemOutcomeView `json:"outcomes"`
}

// BatchView exposes a stored aggregate snapshot on the read path.
type BatchView struct {
	DeviceCode      string      `json:"device_code"`
	CategoryCode    string      `json:"category_code"`
	SupplierCode    string      `json:"supplier_code"`
	ClientCode      *string     `json:"client_code,omitempty"`
	Stage           enums.Stage `json:"stage"`
	EventCount      int         `json:"event_count"`
	InFlowRemainder int         `json:"in_flow_remainder"`
	NonReturned     int         `json:"non_returned_count"`
	TotalRemainder  int         `json:"total_remainder"`
	CreatedAt       time.Time   `json:"created_at"`
}
