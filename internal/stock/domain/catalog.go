package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle is the lifecycle state of a catalog entity
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// IsActive reports whether the entity may be referenced by new stock movements
func (l Lifecycle) IsActive() bool {
	return l == LifecycleActive
}

// Ingredient is the stock service's read model of a catalog ingredient
type Ingredient struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Unit              string          `json:"unit" db:"unit"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold" db:"low_stock_threshold"`
	Lifecycle         Lifecycle       `json:"lifecycle" db:"lifecycle"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Supplier is the stock service's read model of a registered supplier
type Supplier struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Lifecycle Lifecycle `json:"lifecycle" db:"lifecycle"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
