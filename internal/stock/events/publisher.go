package events

import (
	"context"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/restoflow/restoflow-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// Sink publishes one event. *messaging.Publisher implements it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes stock events. A nil publisher drops every event.
type StockEventPublisher struct {
	publisher Sink
	logger    *logger.Logger
}

// NewStockEventPublisher creates a publisher on the stock events exchange
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}
	return NewStockEventPublisherWithSink(publisher, log), nil
}

// NewStockEventPublisherWithSink creates a publisher that sends through sink
func NewStockEventPublisherWithSink(sink Sink, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{
		publisher: sink,
		logger:    log,
	}
}

// PublishImportCreated publishes an import created event
func (p *StockEventPublisher) PublishImportCreated(ctx context.Context, imp *domain.Import) {
	if p == nil {
		return
	}

	data := messaging.ImportCreatedEvent{
		ImportID:        imp.ID,
		ReferenceNumber: imp.ReferenceNumber,
		SupplierID:      imp.SupplierID,
		BatchIDs:        make([]string, 0, len(imp.Batches)),
		IngredientIDs:   []string{},
		CreatedBy:       imp.CreatedBy,
	}
	seen := make(map[string]bool)
	for _, b := range imp.Batches {
		data.BatchIDs = append(data.BatchIDs, b.ID)
		if !seen[b.IngredientID] {
			seen[b.IngredientID] = true
			data.IngredientIDs = append(data.IngredientIDs, b.IngredientID)
		}
	}

	if err := p.publisher.Publish(ctx, messaging.EventImportCreated, data); err != nil {
		p.logger.Error().Err(err).Str("import_id", imp.ID).Msg("failed to publish import created event")
	}
}

// PublishExportCreated publishes an export created event
func (p *StockEventPublisher) PublishExportCreated(ctx context.Context, exp *domain.Export) {
	if p == nil {
		return
	}

	data := messaging.ExportCreatedEvent{
		ExportID:        exp.ID,
		ReferenceNumber: exp.ReferenceNumber,
		Reason:          string(exp.Reason),
		Mode:            string(exp.Mode),
		Items:           make([]messaging.ExportItemEvent, len(exp.Items)),
		CreatedBy:       exp.CreatedBy,
	}
	for i, item := range exp.Items {
		data.Items[i] = messaging.ExportItemEvent{
			BatchID:      item.BatchID,
			IngredientID: item.IngredientID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
		}
	}

	if err := p.publisher.Publish(ctx, messaging.EventExportCreated, data); err != nil {
		p.logger.Error().Err(err).Str("export_id", exp.ID).Msg("failed to publish export created event")
	}
}

// PublishBatchStatusChanged publishes a batch status changed event
func (p *StockEventPublisher) PublishBatchStatusChanged(ctx context.Context, batch *domain.Batch, from domain.BatchStatus) {
	if p == nil {
		return
	}

	data := messaging.BatchStatusChangedEvent{
		BatchID:      batch.ID,
		IngredientID: batch.IngredientID,
		OldStatus:    string(from),
		NewStatus:    string(batch.Status),
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch status changed event")
	}
}

// PublishLowStock publishes a low stock event
func (p *StockEventPublisher) PublishLowStock(ctx context.Context, ingredient *domain.Ingredient, current decimal.Decimal) {
	if p == nil {
		return
	}

	data := messaging.LowStockEvent{
		IngredientID:    ingredient.ID,
		IngredientName:  ingredient.Name,
		Unit:            ingredient.Unit,
		CurrentQuantity: current,
		Threshold:       ingredient.LowStockThreshold,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLowStock, data); err != nil {
		p.logger.Error().Err(err).Str("ingredient_id", ingredient.ID).Msg("failed to publish low stock event")
	}
}

// PublishExpiringSoon publishes an expiring soon event
func (p *StockEventPublisher) PublishExpiringSoon(ctx context.Context, batch *domain.Batch, daysRemaining int) {
	if p == nil || batch.ExpiryDate == nil {
		return
	}

	data := messaging.ExpiringSoonEvent{
		BatchID:       batch.ID,
		IngredientID:  batch.IngredientID,
		ExpiryDate:    *batch.ExpiryDate,
		DaysRemaining: daysRemaining,
		Remaining:     batch.RemainingQuantity,
	}
	if batch.LotNumber != nil {
		data.LotNumber = *batch.LotNumber
	}

	if err := p.publisher.Publish(ctx, messaging.EventExpiringSoon, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish expiring soon event")
	}
}

// PublishStockRecovered publishes a stock recovered event
func (p *StockEventPublisher) PublishStockRecovered(ctx context.Context, ingredientID string, current decimal.Decimal) {
	if p == nil {
		return
	}

	data := messaging.StockRecoveredEvent{
		IngredientID:    ingredientID,
		CurrentQuantity: current,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockRecovered, data); err != nil {
		p.logger.Error().Err(err).Str("ingredient_id", ingredientID).Msg("failed to publish stock recovered event")
	}
}

var _ service.EventPublisher = (*StockEventPublisher)(nil)
