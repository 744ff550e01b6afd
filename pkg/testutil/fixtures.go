package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/shopspring/decimal"
)

// FixtureFactory creates ledger fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
	now      time.Time
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
}

// Now is the instant every fixture is stamped with
func (f *FixtureFactory) Now() time.Time {
	return f.now
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Ingredient creates an active ingredient
func (f *FixtureFactory) Ingredient(opts ...func(*domain.Ingredient)) *domain.Ingredient {
	seq := f.nextSeq()

	ing := &domain.Ingredient{
		ID:                uuid.New().String(),
		Name:              fmt.Sprintf("Ingredient %d", seq),
		Unit:              "kg",
		LowStockThreshold: decimal.NewFromInt(5),
		Lifecycle:         domain.LifecycleActive,
		UpdatedAt:         f.now,
	}

	for _, opt := range opts {
		opt(ing)
	}

	return ing
}

// WithThreshold sets the low stock threshold
func WithThreshold(threshold string) func(*domain.Ingredient) {
	return func(i *domain.Ingredient) {
		i.LowStockThreshold = decimal.RequireFromString(threshold)
	}
}

// Supplier creates an active supplier
func (f *FixtureFactory) Supplier() *domain.Supplier {
	seq := f.nextSeq()

	return &domain.Supplier{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Supplier %d", seq),
		Lifecycle: domain.LifecycleActive,
		UpdatedAt: f.now,
	}
}
