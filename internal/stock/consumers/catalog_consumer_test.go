package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/repository/memstore"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/restoflow/restoflow-backend/pkg/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) (*CatalogEventConsumer, *memstore.Store) {
	t.Helper()
	consumer, err := messaging.NewConsumer(nil, "stock-service.catalog-events", logger.Nop())
	require.NoError(t, err)
	store := memstore.New()
	return newCatalogEventConsumer(consumer, store.Catalog(), logger.Nop()), store
}

func encode(t *testing.T, eventType string, at time.Time, data interface{}) []byte {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "catalog-service", "corr-1", data)
	require.NoError(t, err)
	event.Timestamp = at
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestCatalogConsumer_IngredientLifecycle(t *testing.T) {
	c, store := newTestConsumer(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	outcome := c.consumer.Dispatch(ctx, encode(t, messaging.EventIngredientUpserted, t0, messaging.IngredientEvent{
		IngredientID:      "ing-1",
		Name:              "Flour",
		Unit:              "kg",
		LowStockThreshold: decimal.NewFromInt(5),
	}), 0)
	require.Equal(t, messaging.OutcomeAck, outcome)

	ing, err := store.Catalog().GetIngredient(ctx, "ing-1")
	require.NoError(t, err)
	assert.Equal(t, "Flour", ing.Name)
	assert.True(t, decimal.NewFromInt(5).Equal(ing.LowStockThreshold))

	// A late, older update does not overwrite the newer one.
	c.consumer.Dispatch(ctx, encode(t, messaging.EventIngredientUpserted, t0.Add(time.Hour), messaging.IngredientEvent{
		IngredientID: "ing-1", Name: "Bread flour", Unit: "kg", LowStockThreshold: decimal.NewFromInt(5),
	}), 0)
	c.consumer.Dispatch(ctx, encode(t, messaging.EventIngredientUpserted, t0.Add(time.Minute), messaging.IngredientEvent{
		IngredientID: "ing-1", Name: "Stale", Unit: "kg", LowStockThreshold: decimal.NewFromInt(5),
	}), 0)
	ing, err = store.Catalog().GetIngredient(ctx, "ing-1")
	require.NoError(t, err)
	assert.Equal(t, "Bread flour", ing.Name)

	outcome = c.consumer.Dispatch(ctx, encode(t, messaging.EventIngredientDeleted, t0.Add(2*time.Hour), messaging.IngredientEvent{IngredientID: "ing-1"}), 0)
	require.Equal(t, messaging.OutcomeAck, outcome)

	_, err = store.Catalog().GetIngredient(ctx, "ing-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCatalogConsumer_SupplierLifecycle(t *testing.T) {
	c, store := newTestConsumer(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c.consumer.Dispatch(ctx, encode(t, messaging.EventSupplierUpserted, t0, messaging.SupplierEvent{SupplierID: "sup-1", Name: "Fresh Farms"}), 0)
	sup, err := store.Catalog().GetSupplier(ctx, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Farms", sup.Name)

	c.consumer.Dispatch(ctx, encode(t, messaging.EventSupplierDeleted, t0.Add(time.Minute), messaging.SupplierEvent{SupplierID: "sup-1"}), 0)
	_, err = store.Catalog().GetSupplier(ctx, "sup-1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCatalogConsumer_InvalidPayloadIsRetried(t *testing.T) {
	c, _ := newTestConsumer(t)

	outcome := c.consumer.Dispatch(context.Background(), encode(t, messaging.EventIngredientUpserted, time.Now(), messaging.IngredientEvent{
		IngredientID:      "ing-2",
		LowStockThreshold: decimal.NewFromInt(-1),
	}), 0)
	assert.Equal(t, messaging.OutcomeRequeue, outcome)

	outcome = c.consumer.Dispatch(context.Background(), encode(t, messaging.EventSupplierUpserted, time.Now(), messaging.SupplierEvent{}), 3)
	assert.Equal(t, messaging.OutcomeDeadLetter, outcome)
}
