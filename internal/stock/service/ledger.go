package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Ledger is the only writer of batch rows
type Ledger struct {
	stores     Stores
	monitor    *Monitor
	quantities *QuantityCache
	aggregator *Aggregator
	events     EventPublisher
	clock      Clock
	logger     *logger.Logger
}

// NewLedger creates a new batch ledger service
func NewLedger(stores Stores, monitor *Monitor, quantities *QuantityCache, aggregator *Aggregator, events EventPublisher, clock Clock, log *logger.Logger) *Ledger {
	return &Ledger{
		stores:     stores,
		monitor:    monitor,
		quantities: quantities,
		aggregator: aggregator,
		events:     eventsOrNop(events),
		clock:      clock,
		logger:     log.WithComponent("ledger"),
	}
}

// CreateBatches validates drafts and inserts one available batch per draft for importID.
// Every invalid draft is reported; nothing is written unless all are valid.
func (l *Ledger) CreateBatches(ctx context.Context, importID string, drafts []domain.BatchDraft) ([]*domain.Batch, error) {
	var lines []errors.LineError
	for i, draft := range drafts {
		lines = append(lines, draftLineErrors(i+1, draft)...)
	}
	if len(lines) > 0 {
		return nil, errors.ValidationLines(lines)
	}

	now := l.clock.Now()
	batches := make([]*domain.Batch, len(drafts))
	for i, draft := range drafts {
		// Distinct creation times keep the received order as the FEFO tie-break.
		batches[i] = domain.NewBatch(draft, importID, now.Add(time.Duration(i)*time.Microsecond))
	}

	if err := l.stores.Batches.CreateMany(ctx, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetBatches lists batches in ledger order after bringing their statuses up to date.
// Listing by expiry window also raises expiring soon alerts for the batches it returns.
func (l *Ledger) GetBatches(ctx context.Context, filter domain.BatchFilter, page, perPage int) ([]*domain.Batch, int64, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, errors.Validation(map[string]string{"status": "must be one of: available, depleted, expired, damaged"})
	}
	if filter.ExpiringWithinDays != nil && *filter.ExpiringWithinDays < 0 {
		return nil, 0, errors.Validation(map[string]string{"expiring_within_days": "must not be negative"})
	}

	if _, err := l.monitor.ReclassifyDue(ctx, filter.IngredientID); err != nil {
		return nil, 0, err
	}
	batches, total, err := l.stores.Batches.List(ctx, filter, l.clock.Now(), page, perPage)
	if err != nil {
		return nil, 0, err
	}
	if filter.ExpiringWithinDays != nil {
		l.monitor.NotifyExpiring(ctx, batches)
	}
	return batches, total, nil
}

// GetBatch returns one batch with its status brought up to date
func (l *Ledger) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	batch, err := l.stores.Batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := l.monitor.ReclassifyBatches(ctx, []*domain.Batch{batch})
	if err != nil {
		return nil, err
	}
	return updated[0], nil
}

// DecrementRemaining debits amount from a batch in one conditional write.
// It fails with a conflict when the batch no longer holds amount or left the eligible statuses.
func (l *Ledger) DecrementRemaining(ctx context.Context, batchID string, amount decimal.Decimal, eligible []domain.BatchStatus) (*domain.Batch, error) {
	if !amount.IsPositive() {
		return nil, errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	}
	return l.stores.Batches.Decrement(ctx, batchID, amount, eligible, l.clock.Now())
}

// SetStatus applies a manual status change. Only an available batch can change status,
// and only to a terminal one. Depleted requires an empty batch and expired a passed expiry date.
func (l *Ledger) SetStatus(ctx context.Context, batchID string, to domain.BatchStatus) (*domain.Batch, error) {
	if !to.Valid() {
		return nil, errors.Validation(map[string]string{"status": "must be one of: available, depleted, expired, damaged"})
	}

	batch, err := l.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(batch.Status, to) {
		return nil, errors.InvalidState(fmt.Sprintf("cannot change batch status from %s to %s", batch.Status, to))
	}
	if to == domain.BatchStatusDepleted && batch.RemainingQuantity.IsPositive() {
		return nil, errors.InvalidState("only an empty batch can be marked depleted")
	}
	if to == domain.BatchStatusExpired && !domain.IsPastExpiry(batch.ExpiryDate, l.clock.Now()) {
		return nil, errors.InvalidState("only a batch past its expiry date can be marked expired")
	}

	updated, err := l.stores.Batches.UpdateStatus(ctx, batchID, batch.Status, to, l.clock.Now())
	if err != nil {
		if errors.IsRetryable(err) {
			return nil, errors.InvalidState("batch status changed concurrently")
		}
		return nil, err
	}

	l.quantities.Invalidate(ctx, updated.IngredientID)
	l.events.PublishBatchStatusChanged(ctx, updated, batch.Status)
	l.aggregator.CheckLowStock(ctx, updated.IngredientID)

	l.logger.Info().
		Str("batch_id", batchID).
		Str("from", string(batch.Status)).
		Str("to", string(to)).
		Str("actor", actor.FromContext(ctx).String()).
		Msg("batch status changed")

	return updated, nil
}

func draftLineErrors(line int, draft domain.BatchDraft) []errors.LineError {
	problems := draft.Validate()
	if len(problems) == 0 {
		return nil
	}

	fields := make([]string, 0, len(problems))
	for f := range problems {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]errors.LineError, 0, len(fields))
	for _, f := range fields {
		out = append(out, errors.LineError{
			Line:         line,
			IngredientID: draft.IngredientID,
			Field:        f,
			Message:      problems[f],
		})
	}
	return out
}
