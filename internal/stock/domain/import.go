package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Import is the append-only record of one delivery from a supplier
type Import struct {
	ID              string    `json:"id" db:"id"`
	SupplierID      string    `json:"supplier_id" db:"supplier_id"`
	ReferenceNumber string    `json:"reference_number" db:"reference_number"`
	ImportDate      time.Time `json:"import_date" db:"import_date"`
	Note            *string   `json:"note,omitempty" db:"note"`
	CreatedBy       string    `json:"created_by" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	Batches         []*Batch  `json:"batches,omitempty" db:"-"`
}

// ImportRequest is a delivery to be received
type ImportRequest struct {
	SupplierID      string
	ReferenceNumber string
	ImportDate      *time.Time
	Note            *string
	Lines           []ImportLine
}

// ImportLine is one batch of an import request
type ImportLine struct {
	IngredientID   string
	LotNumber      *string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	ProductionDate *time.Time
	ExpiryDate     *time.Time
}

// Draft converts the line into a batch draft for supplierID
func (l ImportLine) Draft(supplierID string) BatchDraft {
	return BatchDraft{
		IngredientID:   l.IngredientID,
		SupplierID:     supplierID,
		LotNumber:      l.LotNumber,
		Quantity:       l.Quantity,
		UnitPrice:      l.UnitPrice,
		ProductionDate: l.ProductionDate,
		ExpiryDate:     l.ExpiryDate,
	}
}

// LotKey identifies a lot number within an ingredient, or "" when the line has none
func (l ImportLine) LotKey() string {
	if l.LotNumber == nil {
		return ""
	}
	return l.IngredientID + "/" + strings.TrimSpace(*l.LotNumber)
}

// ImportReferencePrefix returns the prefix generated import reference numbers share
// for a delivery whose first line is ingredientID, received on date.
func ImportReferencePrefix(ingredientID string, date time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(ingredientID, "-", ""))
	if len(short) > 6 {
		short = short[:6]
	}
	return fmt.Sprintf("IMP-%s-%s-", short, date.UTC().Format("20060102"))
}

// ExportReferencePrefix returns the prefix generated export reference numbers share for date.
func ExportReferencePrefix(date time.Time) string {
	return fmt.Sprintf("EXP-%s-", date.UTC().Format("20060102"))
}

// NextReferenceSequence returns one more than the highest numeric suffix among
// existing references that start with prefix.
func NextReferenceSequence(prefix string, existing []string) int {
	highest := 0
	for _, ref := range existing {
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(ref, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// FormatReference appends a zero padded sequence number to prefix
func FormatReference(prefix string, seq int) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// ImportFilter selects imports for listing
type ImportFilter struct {
	SupplierID string
	From       *time.Time
	To         *time.Time
}

// Matches reports whether imp passes the filter
func (f ImportFilter) Matches(imp *Import) bool {
	if f.SupplierID != "" && imp.SupplierID != f.SupplierID {
		return false
	}
	if f.From != nil && imp.ImportDate.Before(*f.From) {
		return false
	}
	if f.To != nil && imp.ImportDate.After(*f.To) {
		return false
	}
	return true
}
