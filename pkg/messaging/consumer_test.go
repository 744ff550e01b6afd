package messaging

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(nil, "stock-service.catalog", logger.Nop())
	require.NoError(t, err)
	return c
}

func encodeEvent(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "catalog-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestConsumer_DispatchRoutesByType(t *testing.T) {
	c := newTestConsumer(t)

	var got SupplierEvent
	var correlationID string
	c.RegisterHandler(EventSupplierUpserted, func(ctx context.Context, e *Event) error {
		correlationID = getCorrelationID(ctx)
		return e.UnmarshalData(&got)
	})

	outcome := c.Dispatch(context.Background(), encodeEvent(t, EventSupplierUpserted, SupplierEvent{SupplierID: "s1", Name: "Fresh Farms"}), 0)

	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, "s1", got.SupplierID)
	assert.Equal(t, "corr-1", correlationID)
}

func TestConsumer_DispatchUnknownTypeIsAcked(t *testing.T) {
	c := newTestConsumer(t)
	assert.Equal(t, OutcomeAck, c.Dispatch(context.Background(), encodeEvent(t, "catalog.dish.created", nil), 0))
}

func TestConsumer_DispatchMalformedIsDeadLettered(t *testing.T) {
	c := newTestConsumer(t)
	assert.Equal(t, OutcomeDeadLetter, c.Dispatch(context.Background(), []byte("{not json"), 0))
}

func TestConsumer_DispatchFailureRetriesThenDeadLetters(t *testing.T) {
	c := newTestConsumer(t)
	c.RegisterHandler(EventIngredientDeleted, func(ctx context.Context, e *Event) error {
		return stderrors.New("database unavailable")
	})
	body := encodeEvent(t, EventIngredientDeleted, IngredientEvent{IngredientID: "i1"})

	assert.Equal(t, OutcomeRequeue, c.Dispatch(context.Background(), body, 0))
	assert.Equal(t, OutcomeRequeue, c.Dispatch(context.Background(), body, 2))
	assert.Equal(t, OutcomeDeadLetter, c.Dispatch(context.Background(), body, 3))
}
