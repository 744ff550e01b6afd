package consumers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/restoflow/restoflow-backend/pkg/messaging"
)

// CatalogWriter maintains the local ingredient and supplier read model.
// Upserts and deletes older than the stored version are ignored.
type CatalogWriter interface {
	UpsertIngredient(ctx context.Context, ing *domain.Ingredient) error
	UpsertSupplier(ctx context.Context, sup *domain.Supplier) error
	DeleteIngredient(ctx context.Context, id string, at time.Time) error
	DeleteSupplier(ctx context.Context, id string, at time.Time) error
}

// CatalogEventConsumer keeps the stock service's copy of the catalog up to date
type CatalogEventConsumer struct {
	consumer *messaging.Consumer
	catalog  CatalogWriter
	logger   *logger.Logger
}

// NewCatalogEventConsumer creates a new catalog event consumer
func NewCatalogEventConsumer(rmq *messaging.RabbitMQ, catalog CatalogWriter, log *logger.Logger) (*CatalogEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.catalog-events", log)
	if err != nil {
		return nil, err
	}

	// Subscribe to catalog events
	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.#"); err != nil {
		return nil, err
	}

	return newCatalogEventConsumer(consumer, catalog, log), nil
}

func newCatalogEventConsumer(consumer *messaging.Consumer, catalog CatalogWriter, log *logger.Logger) *CatalogEventConsumer {
	c := &CatalogEventConsumer{
		consumer: consumer,
		catalog:  catalog,
		logger:   log,
	}

	// Register handlers
	consumer.RegisterHandler(messaging.EventIngredientUpserted, c.handleIngredientUpserted)
	consumer.RegisterHandler(messaging.EventIngredientDeleted, c.handleIngredientDeleted)
	consumer.RegisterHandler(messaging.EventSupplierUpserted, c.handleSupplierUpserted)
	consumer.RegisterHandler(messaging.EventSupplierDeleted, c.handleSupplierDeleted)

	return c
}

// Start starts consuming messages
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *CatalogEventConsumer) handleIngredientUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.IngredientEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if strings.TrimSpace(data.IngredientID) == "" {
		return fmt.Errorf("ingredient event %s without ingredient_id", event.ID)
	}
	if data.LowStockThreshold.IsNegative() {
		return fmt.Errorf("ingredient %s has a negative low stock threshold", data.IngredientID)
	}

	c.logger.Info().
		Str("ingredient_id", data.IngredientID).
		Str("name", data.Name).
		Msg("received ingredient upserted event")

	return c.catalog.UpsertIngredient(ctx, &domain.Ingredient{
		ID:                data.IngredientID,
		Name:              data.Name,
		Unit:              data.Unit,
		LowStockThreshold: data.LowStockThreshold,
		Lifecycle:         domain.LifecycleActive,
		UpdatedAt:         event.Timestamp,
	})
}

func (c *CatalogEventConsumer) handleIngredientDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.IngredientEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("ingredient_id", data.IngredientID).
		Msg("received ingredient deleted event")

	return c.catalog.DeleteIngredient(ctx, data.IngredientID, event.Timestamp)
}

func (c *CatalogEventConsumer) handleSupplierUpserted(ctx context.Context, event *messaging.Event) error {
	var data messaging.SupplierEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if strings.TrimSpace(data.SupplierID) == "" {
		return fmt.Errorf("supplier event %s without supplier_id", event.ID)
	}

	c.logger.Info().
		Str("supplier_id", data.SupplierID).
		Str("name", data.Name).
		Msg("received supplier upserted event")

	return c.catalog.UpsertSupplier(ctx, &domain.Supplier{
		ID:        data.SupplierID,
		Name:      data.Name,
		Lifecycle: domain.LifecycleActive,
		UpdatedAt: event.Timestamp,
	})
}

func (c *CatalogEventConsumer) handleSupplierDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.SupplierEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("supplier_id", data.SupplierID).
		Msg("received supplier deleted event")

	return c.catalog.DeleteSupplier(ctx, data.SupplierID, event.Timestamp)
}
