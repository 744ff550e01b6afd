package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertType identifies the condition an alert reports
type AlertType string

const (
	AlertTypeLowStock     AlertType = "low_stock"
	AlertTypeExpiringSoon AlertType = "expiring_soon"
)

// Alert is a persisted stock condition. At most one unresolved alert exists per type and entity.
type Alert struct {
	ID              string              `json:"id" db:"id"`
	AlertType       AlertType           `json:"alert_type" db:"alert_type"`
	EntityID        string              `json:"entity_id" db:"entity_id"`
	IngredientID    string              `json:"ingredient_id" db:"ingredient_id"`
	BatchID         *string             `json:"batch_id,omitempty" db:"batch_id"`
	Message         string              `json:"message" db:"message"`
	CurrentQuantity decimal.NullDecimal `json:"current_quantity" db:"current_quantity"`
	Threshold       decimal.NullDecimal `json:"threshold" db:"threshold"`
	ExpiryDate      *time.Time          `json:"expiry_date,omitempty" db:"expiry_date"`
	DaysUntilExpiry *int                `json:"days_until_expiry,omitempty" db:"days_until_expiry"`
	IsAcknowledged  bool                `json:"is_acknowledged" db:"is_acknowledged"`
	AcknowledgedBy  *string             `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt  *time.Time          `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
}

// AlertFilter selects alerts for listing
type AlertFilter struct {
	AlertType       AlertType
	Acknowledged    *bool
	IncludeResolved bool
}

// IsOpen reports whether the alert is unresolved
func (a *Alert) IsOpen() bool {
	return a.ResolvedAt == nil
}

// Matches reports whether a passes the filter
func (f AlertFilter) Matches(a *Alert) bool {
	if f.AlertType != "" && a.AlertType != f.AlertType {
		return false
	}
	if f.Acknowledged != nil && a.IsAcknowledged != *f.Acknowledged {
		return false
	}
	if !f.IncludeResolved && !a.IsOpen() {
		return false
	}
	return true
}
