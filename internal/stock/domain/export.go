package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExportReason records why stock left the ledger
type ExportReason string

const (
	ExportReasonUsage   ExportReason = "usage"
	ExportReasonDamaged ExportReason = "damaged"
	ExportReasonExpired ExportReason = "expired"
	ExportReasonOther   ExportReason = "other"
)

// Valid reports whether r is a known reason
func (r ExportReason) Valid() bool {
	switch r {
	case ExportReasonUsage, ExportReasonDamaged, ExportReasonExpired, ExportReasonOther:
		return true
	}
	return false
}

// IsWriteOff reports whether the reason writes off spoiled stock
func (r ExportReason) IsWriteOff() bool {
	return r == ExportReasonDamaged || r == ExportReasonExpired
}

// EligibleStatuses returns the batch statuses an export with reason r may debit.
// Available stock is always eligible; expired and damaged stock only under the matching write-off reason.
func (r ExportReason) EligibleStatuses() []BatchStatus {
	switch r {
	case ExportReasonExpired:
		return []BatchStatus{BatchStatusAvailable, BatchStatusExpired}
	case ExportReasonDamaged:
		return []BatchStatus{BatchStatusAvailable, BatchStatusDamaged}
	default:
		return []BatchStatus{BatchStatusAvailable}
	}
}

// Allows reports whether a batch in status s may be debited under reason r
func (r ExportReason) Allows(s BatchStatus) bool {
	for _, eligible := range r.EligibleStatuses() {
		if eligible == s {
			return true
		}
	}
	return false
}

// ExportMode is how the debited batches were chosen
type ExportMode string

const (
	ExportModeManual    ExportMode = "manual"
	ExportModeAutomatic ExportMode = "automatic"
)

// Export is the append-only record of stock leaving the ledger
type Export struct {
	ID              string        `json:"id" db:"id"`
	ReferenceNumber string        `json:"reference_number" db:"reference_number"`
	ExportDate      time.Time     `json:"export_date" db:"export_date"`
	Reason          ExportReason  `json:"reason" db:"reason"`
	Mode            ExportMode    `json:"mode" db:"mode"`
	Notes           *string       `json:"notes,omitempty" db:"notes"`
	CreatedBy       string        `json:"created_by" db:"created_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	Items           []*ExportItem `json:"items,omitempty" db:"-"`
}

// TotalQuantity sums the quantities of all items
func (e *Export) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Quantity)
	}
	return total
}

// TotalCost sums quantity times unit price over all items
func (e *Export) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, item := range e.Items {
		total = total.Add(item.Cost())
	}
	return total
}

// ExportItem records how much of one batch an export debited
type ExportItem struct {
	ID           string          `json:"id" db:"id"`
	ExportID     string          `json:"export_id" db:"export_id"`
	Position     int             `json:"position" db:"position"`
	BatchID      string          `json:"batch_id" db:"batch_id"`
	IngredientID string          `json:"ingredient_id" db:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// Cost returns quantity times unit price
func (i *ExportItem) Cost() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// ExportLine asks for quantity from one specific batch (manual mode)
type ExportLine struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// IngredientRequest asks for quantity of one ingredient from any eligible batches (automatic mode)
type IngredientRequest struct {
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// ExportFilter selects exports for listing
type ExportFilter struct {
	Reason ExportReason
	Mode   ExportMode
	From   *time.Time
	To     *time.Time
}

// Matches reports whether exp passes the filter
func (f ExportFilter) Matches(exp *Export) bool {
	if f.Reason != "" && exp.Reason != f.Reason {
		return false
	}
	if f.Mode != "" && exp.Mode != f.Mode {
		return false
	}
	if f.From != nil && exp.ExportDate.Before(*f.From) {
		return false
	}
	if f.To != nil && exp.ExportDate.After(*f.To) {
		return false
	}
	return true
}
