package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// LowStockItem is an active ingredient whose current quantity is below its threshold
type LowStockItem struct {
	IngredientID    string          `json:"ingredient_id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	Threshold       decimal.Decimal `json:"low_stock_threshold"`
}

// Aggregator derives per-ingredient quantities from the ledger.
// Current quantity is always the sum over available batches; it is never stored.
type Aggregator struct {
	stores     Stores
	monitor    *Monitor
	quantities *QuantityCache
	events     EventPublisher
	clock      Clock
	logger     *logger.Logger
}

// NewAggregator creates a new stock aggregator
func NewAggregator(stores Stores, monitor *Monitor, quantities *QuantityCache, events EventPublisher, clock Clock, log *logger.Logger) *Aggregator {
	return &Aggregator{
		stores:     stores,
		monitor:    monitor,
		quantities: quantities,
		events:     eventsOrNop(events),
		clock:      clock,
		logger:     log.WithComponent("aggregator"),
	}
}

// GetCurrentQuantity returns the remaining quantity over the ingredient's available batches
func (a *Aggregator) GetCurrentQuantity(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	if _, err := a.stores.Catalog.GetIngredient(ctx, ingredientID); err != nil {
		return decimal.Zero, err
	}
	return a.currentQuantity(ctx, ingredientID)
}

func (a *Aggregator) currentQuantity(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	if _, err := a.monitor.ReclassifyDue(ctx, ingredientID); err != nil {
		return decimal.Zero, err
	}
	return a.quantities.get(ctx, ingredientID, func(ctx context.Context) (decimal.Decimal, error) {
		return a.stores.Batches.SumAvailable(ctx, ingredientID)
	})
}

// GetStockSummary returns quantities per status, the available value and the nearest expiry
func (a *Aggregator) GetStockSummary(ctx context.Context, ingredientID string) (*domain.StockSummary, error) {
	ing, err := a.stores.Catalog.GetIngredient(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	if _, err := a.monitor.ReclassifyDue(ctx, ingredientID); err != nil {
		return nil, err
	}

	summary, err := a.stores.Batches.Summarize(ctx, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("summarize stock: %w", err)
	}
	summary.Unit = ing.Unit
	summary.ApplyThreshold(ing.LowStockThreshold)
	return summary, nil
}

// GetLowStock returns every active ingredient below its threshold and raises
// low stock alerts for the ones not already alerted.
func (a *Aggregator) GetLowStock(ctx context.Context) ([]*LowStockItem, error) {
	ingredients, err := a.stores.Catalog.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	items, _, _, err := a.evaluate(ctx, ingredients)
	return items, err
}

// ScanLowStock evaluates every active ingredient and returns how many alerts were raised and resolved
func (a *Aggregator) ScanLowStock(ctx context.Context) (raised, resolved int, err error) {
	ingredients, err := a.stores.Catalog.ListIngredients(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list ingredients: %w", err)
	}
	_, raised, resolved, err = a.evaluate(ctx, ingredients)
	return raised, resolved, err
}

// CheckLowStock re-evaluates the given ingredients after a mutation.
// Failures are logged; the mutation has already committed.
func (a *Aggregator) CheckLowStock(ctx context.Context, ingredientIDs ...string) {
	ids := uniqueStrings(ingredientIDs)
	if len(ids) == 0 {
		return
	}

	found, err := a.stores.Catalog.GetIngredients(ctx, ids)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to load ingredients for low stock check")
		return
	}

	ingredients := make([]*domain.Ingredient, 0, len(found))
	for _, id := range ids {
		if ing, ok := found[id]; ok {
			ingredients = append(ingredients, ing)
		}
	}

	if _, _, _, err := a.evaluate(ctx, ingredients); err != nil {
		a.logger.Error().Err(err).Msg("low stock check failed")
	}
}

func (a *Aggregator) evaluate(ctx context.Context, ingredients []*domain.Ingredient) ([]*LowStockItem, int, int, error) {
	open, err := a.stores.Alerts.ListOpen(ctx, domain.AlertTypeLowStock)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list open low stock alerts: %w", err)
	}
	openByIngredient := make(map[string]*domain.Alert, len(open))
	for _, alert := range open {
		openByIngredient[alert.EntityID] = alert
	}

	items := []*LowStockItem{}
	raised, resolved := 0, 0
	now := a.clock.Now()

	for _, ing := range ingredients {
		current, err := a.currentQuantity(ctx, ing.ID)
		if err != nil {
			return items, raised, resolved, fmt.Errorf("current quantity of %s: %w", ing.ID, err)
		}

		if !current.LessThan(ing.LowStockThreshold) {
			if alert, ok := openByIngredient[ing.ID]; ok {
				if err := a.stores.Alerts.Resolve(ctx, alert.ID, now); err != nil {
					a.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to resolve low stock alert")
					continue
				}
				resolved++
				a.events.PublishStockRecovered(ctx, ing.ID, current)
			}
			continue
		}

		items = append(items, &LowStockItem{
			IngredientID:    ing.ID,
			Name:            ing.Name,
			Unit:            ing.Unit,
			CurrentQuantity: current,
			Threshold:       ing.LowStockThreshold,
		})

		if _, ok := openByIngredient[ing.ID]; ok {
			continue
		}

		created, err := a.stores.Alerts.CreateIfAbsent(ctx, &domain.Alert{
			ID:              uuid.New().String(),
			AlertType:       domain.AlertTypeLowStock,
			EntityID:        ing.ID,
			IngredientID:    ing.ID,
			Message:         fmt.Sprintf("%s is low on stock (%s/%s %s)", ing.Name, current.String(), ing.LowStockThreshold.String(), ing.Unit),
			CurrentQuantity: decimal.NewNullDecimal(current),
			Threshold:       decimal.NewNullDecimal(ing.LowStockThreshold),
			CreatedAt:       now,
		})
		if err != nil {
			a.logger.Error().Err(err).Str("ingredient_id", ing.ID).Msg("failed to create low stock alert")
			continue
		}
		if created {
			raised++
			a.events.PublishLowStock(ctx, ing, current)
			a.logger.Info().
				Str("ingredient_id", ing.ID).
				Str("current", current.String()).
				Str("threshold", ing.LowStockThreshold.String()).
				Msg("low stock")
		}
	}

	return items, raised, resolved, nil
}
