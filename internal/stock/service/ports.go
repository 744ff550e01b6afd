package service

import (
	"context"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/shopspring/decimal"
)

// Transactor runs fn in one unit of work. Stores called with the ctx passed to fn
// join that unit; nested calls reuse it.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BatchStore persists batches
type BatchStore interface {
	CreateMany(ctx context.Context, batches []*domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Batch, error)
	List(ctx context.Context, filter domain.BatchFilter, now time.Time, page, perPage int) ([]*domain.Batch, int64, error)
	ListByImport(ctx context.Context, importID string) ([]*domain.Batch, error)
	// ListCandidates returns the ingredient's batches in one of statuses, in FEFO order.
	ListCandidates(ctx context.Context, ingredientID string, statuses []domain.BatchStatus) ([]*domain.Batch, error)
	// ListDue returns available batches that Reclassify would move at now, optionally for one ingredient.
	ListDue(ctx context.Context, ingredientID string, now time.Time) ([]*domain.Batch, error)
	ListExpiring(ctx context.Context, now time.Time, days int) ([]*domain.Batch, error)
	LotExists(ctx context.Context, ingredientID, lotNumber string) (bool, error)
	// Decrement debits amount in a single conditional write. It fails with a conflict
	// when the batch no longer holds amount or is no longer in an eligible status.
	Decrement(ctx context.Context, id string, amount decimal.Decimal, eligible []domain.BatchStatus, now time.Time) (*domain.Batch, error)
	// UpdateStatus moves the batch from one status to another, failing with a conflict
	// when the batch is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.BatchStatus, now time.Time) (*domain.Batch, error)
	SumAvailable(ctx context.Context, ingredientID string) (decimal.Decimal, error)
	Summarize(ctx context.Context, ingredientID string) (*domain.StockSummary, error)
}

// ImportStore persists imports
type ImportStore interface {
	Create(ctx context.Context, imp *domain.Import) error
	GetByID(ctx context.Context, id string) (*domain.Import, error)
	List(ctx context.Context, filter domain.ImportFilter, page, perPage int) ([]*domain.Import, int64, error)
	// NextSequence returns one more than the highest sequence used with prefix.
	NextSequence(ctx context.Context, prefix string) (int, error)
}

// ExportStore persists exports and their items
type ExportStore interface {
	Create(ctx context.Context, exp *domain.Export) error
	GetByID(ctx context.Context, id string) (*domain.Export, error)
	List(ctx context.Context, filter domain.ExportFilter, page, perPage int) ([]*domain.Export, int64, error)
	NextSequence(ctx context.Context, prefix string) (int, error)
}

// AlertStore persists alerts. At most one unresolved alert exists per type and entity.
type AlertStore interface {
	// CreateIfAbsent stores alert unless an unresolved alert of the same type and entity exists.
	CreateIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	List(ctx context.Context, filter domain.AlertFilter, page, perPage int) ([]*domain.Alert, int64, error)
	ListOpen(ctx context.Context, alertType domain.AlertType) ([]*domain.Alert, error)
	Acknowledge(ctx context.Context, id, userID string, at time.Time) error
	Resolve(ctx context.Context, id string, at time.Time) error
}

// Catalog is the local read model of ingredients and suppliers.
// Get methods return not found for deleted entities.
type Catalog interface {
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	GetIngredients(ctx context.Context, ids []string) (map[string]*domain.Ingredient, error)
	ListIngredients(ctx context.Context) ([]*domain.Ingredient, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
}

// Stores bundles the persistence the stock services share
type Stores struct {
	Tx      Transactor
	Batches BatchStore
	Imports ImportStore
	Exports ExportStore
	Alerts  AlertStore
	Catalog Catalog
}

// EventPublisher publishes stock events. Implementations log failures and never block a
// committed operation.
type EventPublisher interface {
	PublishImportCreated(ctx context.Context, imp *domain.Import)
	PublishExportCreated(ctx context.Context, exp *domain.Export)
	PublishBatchStatusChanged(ctx context.Context, batch *domain.Batch, from domain.BatchStatus)
	PublishLowStock(ctx context.Context, ingredient *domain.Ingredient, current decimal.Decimal)
	PublishExpiringSoon(ctx context.Context, batch *domain.Batch, daysRemaining int)
	PublishStockRecovered(ctx context.Context, ingredientID string, current decimal.Decimal)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type nopEvents struct{}

func (nopEvents) PublishImportCreated(context.Context, *domain.Import)                         {}
func (nopEvents) PublishExportCreated(context.Context, *domain.Export)                         {}
func (nopEvents) PublishBatchStatusChanged(context.Context, *domain.Batch, domain.BatchStatus) {}
func (nopEvents) PublishLowStock(context.Context, *domain.Ingredient, decimal.Decimal)         {}
func (nopEvents) PublishExpiringSoon(context.Context, *domain.Batch, int)                      {}
func (nopEvents) PublishStockRecovered(context.Context, string, decimal.Decimal)               {}

func eventsOrNop(e EventPublisher) EventPublisher {
	if e == nil {
		return nopEvents{}
	}
	return e
}
