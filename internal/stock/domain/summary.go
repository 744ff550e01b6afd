package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSummary is the per-ingredient stock picture shown on the stock view
type StockSummary struct {
	IngredientID    string              `json:"ingredient_id"`
	Unit            string              `json:"unit,omitempty"`
	CurrentQuantity decimal.Decimal     `json:"current_quantity"`
	ExpiredQuantity decimal.Decimal     `json:"expired_quantity"`
	DamagedQuantity decimal.Decimal     `json:"damaged_quantity"`
	AvailableValue  decimal.Decimal     `json:"available_value"`
	BatchCounts     map[BatchStatus]int `json:"batch_counts"`
	NearestExpiry   *time.Time          `json:"nearest_expiry,omitempty"`
	Threshold       decimal.Decimal     `json:"low_stock_threshold"`
	IsLow           bool                `json:"is_low"`
}

// NewStockSummary returns an empty summary with a zero count for every status
func NewStockSummary(ingredientID string) *StockSummary {
	counts := make(map[BatchStatus]int, len(AllBatchStatuses))
	for _, s := range AllBatchStatuses {
		counts[s] = 0
	}
	return &StockSummary{
		IngredientID:    ingredientID,
		CurrentQuantity: decimal.Zero,
		ExpiredQuantity: decimal.Zero,
		DamagedQuantity: decimal.Zero,
		AvailableValue:  decimal.Zero,
		BatchCounts:     counts,
		Threshold:       decimal.Zero,
	}
}

// Add folds one batch into the summary
func (s *StockSummary) Add(b *Batch) {
	s.BatchCounts[b.Status]++
	switch b.Status {
	case BatchStatusAvailable:
		s.CurrentQuantity = s.CurrentQuantity.Add(b.RemainingQuantity)
		s.AvailableValue = s.AvailableValue.Add(b.Value())
		if b.ExpiryDate != nil && (s.NearestExpiry == nil || b.ExpiryDate.Before(*s.NearestExpiry)) {
			d := *b.ExpiryDate
			s.NearestExpiry = &d
		}
	case BatchStatusExpired:
		s.ExpiredQuantity = s.ExpiredQuantity.Add(b.RemainingQuantity)
	case BatchStatusDamaged:
		s.DamagedQuantity = s.DamagedQuantity.Add(b.RemainingQuantity)
	}
}

// ApplyThreshold records the ingredient's low-stock threshold and whether stock is below it
func (s *StockSummary) ApplyThreshold(threshold decimal.Decimal) {
	s.Threshold = threshold
	s.IsLow = s.CurrentQuantity.LessThan(threshold)
}
