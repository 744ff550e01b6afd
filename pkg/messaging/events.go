package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Stock events published by the stock service
	EventImportCreated      = "stock.import.created"
	EventExportCreated      = "stock.export.created"
	EventBatchStatusChanged = "stock.batch.status_changed"
	EventLowStock           = "stock.alert.low_stock"
	EventExpiringSoon       = "stock.alert.expiring_soon"
	EventStockRecovered     = "stock.alert.recovered"

	// Catalog events consumed by the stock service
	EventIngredientUpserted = "catalog.ingredient.upserted"
	EventIngredientDeleted  = "catalog.ingredient.deleted"
	EventSupplierUpserted   = "catalog.supplier.upserted"
	EventSupplierDeleted    = "catalog.supplier.deleted"
)

// Exchange names
const (
	ExchangeStockEvents   = "stock.events"
	ExchangeCatalogEvents = "catalog.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// ImportCreatedEvent is published after an import and its batches are committed
type ImportCreatedEvent struct {
	ImportID        string   `json:"import_id"`
	ReferenceNumber string   `json:"reference_number"`
	SupplierID      string   `json:"supplier_id"`
	BatchIDs        []string `json:"batch_ids"`
	IngredientIDs   []string `json:"ingredient_ids"`
	CreatedBy       string   `json:"created_by"`
}

// ExportCreatedEvent is published after an export has debited its batches
type ExportCreatedEvent struct {
	ExportID        string            `json:"export_id"`
	ReferenceNumber string            `json:"reference_number"`
	Reason          string            `json:"reason"`
	Mode            string            `json:"mode"`
	Items           []ExportItemEvent `json:"items"`
	CreatedBy       string            `json:"created_by"`
}

// ExportItemEvent is one debited batch of an export
type ExportItemEvent struct {
	BatchID      string          `json:"batch_id"`
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// BatchStatusChangedEvent is published when a batch leaves the available state
type BatchStatusChangedEvent struct {
	BatchID      string `json:"batch_id"`
	IngredientID string `json:"ingredient_id"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
}

// LowStockEvent is published when an ingredient's current quantity falls below its threshold
type LowStockEvent struct {
	IngredientID    string          `json:"ingredient_id"`
	IngredientName  string          `json:"ingredient_name"`
	Unit            string          `json:"unit"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	Threshold       decimal.Decimal `json:"threshold"`
}

// ExpiringSoonEvent is published when an available batch approaches its expiry date
type ExpiringSoonEvent struct {
	BatchID       string          `json:"batch_id"`
	IngredientID  string          `json:"ingredient_id"`
	LotNumber     string          `json:"lot_number,omitempty"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	DaysRemaining int             `json:"days_remaining"`
	Remaining     decimal.Decimal `json:"remaining_quantity"`
}

// StockRecoveredEvent is published when a low-stock alert resolves itself
type StockRecoveredEvent struct {
	IngredientID    string          `json:"ingredient_id"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
}

// Catalog Events

// IngredientEvent carries the ingredient fields the stock service caches
type IngredientEvent struct {
	IngredientID      string          `json:"ingredient_id"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
}

// SupplierEvent carries the supplier fields the stock service caches
type SupplierEvent struct {
	SupplierID string `json:"supplier_id"`
	Name       string `json:"name"`
}
