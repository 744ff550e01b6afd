package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the status of a batch
type BatchStatus string

const (
	BatchStatusAvailable BatchStatus = "available"
	BatchStatusDepleted  BatchStatus = "depleted"
	BatchStatusExpired   BatchStatus = "expired"
	BatchStatusDamaged   BatchStatus = "damaged"
)

// AllBatchStatuses lists every status in display order
var AllBatchStatuses = []BatchStatus{
	BatchStatusAvailable,
	BatchStatusDepleted,
	BatchStatusExpired,
	BatchStatusDamaged,
}

// Valid reports whether s is a known status
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusAvailable, BatchStatusDepleted, BatchStatusExpired, BatchStatusDamaged:
		return true
	}
	return false
}

// IsTerminal reports whether a batch in status s can never change status again
func (s BatchStatus) IsTerminal() bool {
	return s != BatchStatusAvailable
}

// CanTransition reports whether from -> to is a legal status change.
// Only an available batch may change status, and never back to available.
func CanTransition(from, to BatchStatus) bool {
	if from != BatchStatusAvailable {
		return false
	}
	switch to {
	case BatchStatusDepleted, BatchStatusExpired, BatchStatusDamaged:
		return true
	}
	return false
}

// Batch is one received lot of a single ingredient
type Batch struct {
	ID                string          `json:"id" db:"id"`
	IngredientID      string          `json:"ingredient_id" db:"ingredient_id"`
	SupplierID        string          `json:"supplier_id" db:"supplier_id"`
	ImportID          string          `json:"import_id" db:"import_id"`
	LotNumber         *string         `json:"lot_number,omitempty" db:"lot_number"`
	Quantity          decimal.Decimal `json:"quantity" db:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity" db:"remaining_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price" db:"unit_price"`
	ProductionDate    *time.Time      `json:"production_date,omitempty" db:"production_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`
	Status            BatchStatus     `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// BatchDraft describes a batch to be received
type BatchDraft struct {
	IngredientID   string
	SupplierID     string
	LotNumber      *string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	ProductionDate *time.Time
	ExpiryDate     *time.Time
}

// Validate returns field -> message for every rule s breaks
func (s BatchDraft) Validate() map[string]string {
	problems := make(map[string]string)

	if strings.TrimSpace(s.IngredientID) == "" {
		problems["ingredient_id"] = "is required"
	}
	if !s.Quantity.IsPositive() {
		problems["quantity"] = "must be greater than zero"
	} else if msg := ScaleProblem(s.Quantity); msg != "" {
		problems["quantity"] = msg
	}
	if s.UnitPrice.IsNegative() {
		problems["unit_price"] = "must not be negative"
	} else if msg := ScaleProblem(s.UnitPrice); msg != "" {
		problems["unit_price"] = msg
	}
	if s.ProductionDate != nil && s.ExpiryDate != nil && s.ProductionDate.After(*s.ExpiryDate) {
		problems["expiry_date"] = "must not be before production_date"
	}
	if s.LotNumber != nil && strings.TrimSpace(*s.LotNumber) == "" {
		problems["lot_number"] = "must not be blank"
	}

	return problems
}

// NewBatch creates an available batch holding its full quantity.
// draft must already have passed Validate.
func NewBatch(draft BatchDraft, importID string, now time.Time) *Batch {
	var lot *string
	if draft.LotNumber != nil {
		trimmed := strings.TrimSpace(*draft.LotNumber)
		lot = &trimmed
	}

	return &Batch{
		ID:                uuid.New().String(),
		IngredientID:      draft.IngredientID,
		SupplierID:        draft.SupplierID,
		ImportID:          importID,
		LotNumber:         lot,
		Quantity:          draft.Quantity,
		RemainingQuantity: draft.Quantity,
		UnitPrice:         draft.UnitPrice,
		ProductionDate:    truncateDate(draft.ProductionDate),
		ExpiryDate:        truncateDate(draft.ExpiryDate),
		Status:            BatchStatusAvailable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Value returns the cost of the stock still held by the batch
func (b *Batch) Value() decimal.Decimal {
	return b.RemainingQuantity.Mul(b.UnitPrice)
}

// Clone returns a deep copy of b
func (b *Batch) Clone() *Batch {
	c := *b
	if b.LotNumber != nil {
		lot := *b.LotNumber
		c.LotNumber = &lot
	}
	if b.ProductionDate != nil {
		d := *b.ProductionDate
		c.ProductionDate = &d
	}
	if b.ExpiryDate != nil {
		d := *b.ExpiryDate
		c.ExpiryDate = &d
	}
	return &c
}

// BatchFilter selects batches for GetBatches. Zero values mean "any".
type BatchFilter struct {
	IngredientID       string
	SupplierID         string
	ImportID           string
	Status             *BatchStatus
	ExpiringWithinDays *int
}

// Matches reports whether b passes the filter at time now
func (f BatchFilter) Matches(b *Batch, now time.Time) bool {
	if f.IngredientID != "" && b.IngredientID != f.IngredientID {
		return false
	}
	if f.SupplierID != "" && b.SupplierID != f.SupplierID {
		return false
	}
	if f.ImportID != "" && b.ImportID != f.ImportID {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.ExpiringWithinDays != nil {
		if b.ExpiryDate == nil || b.ExpiryDate.After(ExpiryHorizon(now, *f.ExpiringWithinDays)) {
			return false
		}
	}
	return true
}

// LessFEFO orders batches by expiry date ascending with undated batches last,
// then by creation time, then by id so that the order is total.
func LessFEFO(a, b *Batch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortFEFO sorts batches in ledger order
func SortFEFO(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool { return LessFEFO(batches[i], batches[j]) })
}

func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := StartOfDay(*t)
	return &d
}
