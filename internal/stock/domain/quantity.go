package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of fractional digits stored for quantities and prices.
const QuantityScale = 4

// maxQuantity bounds the integer part to what NUMERIC(18, 4) holds.
var maxQuantity = decimal.New(1, 18-QuantityScale)

// ScaleProblem returns why d cannot be stored exactly, or "" when it can.
// Values are rejected rather than rounded so that ledger debits match export items.
func ScaleProblem(d decimal.Decimal) string {
	switch {
	case !d.Equal(d.Truncate(QuantityScale)):
		return "must have at most 4 decimal places"
	case d.Abs().GreaterThanOrEqual(maxQuantity):
		return "must be less than " + maxQuantity.String()
	}
	return ""
}

// IsID reports whether s is a well-formed entity id
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
