package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

// AllocatorConfig tunes conflict handling
type AllocatorConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// ExportAllocator debits stock for exports, either from named batches or by FEFO
type ExportAllocator struct {
	stores     Stores
	ledger     *Ledger
	monitor    *Monitor
	quantities *QuantityCache
	aggregator *Aggregator
	events     EventPublisher
	clock      Clock
	cfg        AllocatorConfig
	logger     *logger.Logger
}

// NewExportAllocator creates a new export allocator
func NewExportAllocator(
	stores Stores,
	ledger *Ledger,
	monitor *Monitor,
	quantities *QuantityCache,
	aggregator *Aggregator,
	events EventPublisher,
	clock Clock,
	cfg AllocatorConfig,
	log *logger.Logger,
) *ExportAllocator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &ExportAllocator{
		stores:     stores,
		ledger:     ledger,
		monitor:    monitor,
		quantities: quantities,
		aggregator: aggregator,
		events:     eventsOrNop(events),
		clock:      clock,
		cfg:        cfg,
		logger:     log.WithComponent("export"),
	}
}

// CreateExport plans and commits an export. A commit that loses a race against another
// writer is re-planned from fresh data up to MaxRetries times before a conflict is returned.
// A reference number supplied by the caller that is already taken fails at once.
func (a *ExportAllocator) CreateExport(ctx context.Context, req *domain.ExportRequest) (*domain.Export, error) {
	if err := validateExportIDs(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		exp, depleted, err := a.attempt(ctx, req)
		if err == nil {
			a.afterCommit(ctx, exp, depleted)
			return exp, nil
		}
		if !errors.IsRetryable(err) {
			return nil, err
		}
		if req.ReferenceNumber() != "" && errors.Is(err, errors.ErrDuplicateReference) {
			return nil, err
		}

		lastErr = err
		a.logger.Warn().Err(err).Int("attempt", attempt).Str("mode", string(req.Mode())).Msg("export conflicted, re-planning")

		if attempt < a.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	return nil, errors.Wrap(lastErr, errors.CodeConflict,
		fmt.Sprintf("export could not be committed after %d attempts", a.cfg.MaxRetries), 409)
}

// validateExportIDs rejects malformed batch and ingredient ids before they reach the store.
func validateExportIDs(req *domain.ExportRequest) error {
	var lines []errors.LineError
	for i, l := range req.Lines() {
		if !domain.IsID(l.BatchID) {
			lines = append(lines, errors.LineError{Line: i + 1, BatchID: l.BatchID, Field: "batch_id", Message: "must be a valid UUID"})
		}
	}
	for i, r := range req.Requests() {
		if !domain.IsID(r.IngredientID) {
			lines = append(lines, errors.LineError{Line: i + 1, IngredientID: r.IngredientID, Field: "ingredient_id", Message: "must be a valid UUID"})
		}
	}
	if len(lines) > 0 {
		return errors.ValidationLines(lines)
	}
	return nil
}

// attempt runs one plan and commit. Reads happen outside the transaction; the
// conditional decrements inside it detect anything that changed in between.
func (a *ExportAllocator) attempt(ctx context.Context, req *domain.ExportRequest) (*domain.Export, []movedBatch, error) {
	var allocations []domain.Allocation
	var err error
	switch req.Mode() {
	case domain.ExportModeManual:
		allocations, err = a.planManual(ctx, req)
	default:
		allocations, err = a.planAutomatic(ctx, req)
	}
	if err != nil {
		return nil, nil, err
	}

	now := a.clock.Now()
	exportDate := domain.StartOfDay(now)
	if d := req.ExportDate(); d != nil {
		exportDate = domain.StartOfDay(*d)
	}

	exp := &domain.Export{
		ID:              uuid.New().String(),
		ReferenceNumber: req.ReferenceNumber(),
		ExportDate:      exportDate,
		Reason:          req.Reason(),
		Mode:            req.Mode(),
		Notes:           req.Notes(),
		CreatedBy:       actor.IDFromContext(ctx),
		CreatedAt:       now,
		Items:           make([]*domain.ExportItem, len(allocations)),
	}
	for i, alloc := range allocations {
		exp.Items[i] = &domain.ExportItem{
			ID:           uuid.New().String(),
			ExportID:     exp.ID,
			Position:     i + 1,
			BatchID:      alloc.BatchID,
			IngredientID: alloc.IngredientID,
			Quantity:     alloc.Quantity,
			UnitPrice:    alloc.UnitPrice,
		}
	}

	var depleted []movedBatch
	eligible := req.Reason().EligibleStatuses()
	err = a.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
		depleted = nil
		for _, alloc := range allocations {
			after, err := a.ledger.DecrementRemaining(ctx, alloc.BatchID, alloc.Quantity, eligible)
			if err != nil {
				return err
			}
			if after.Status != alloc.Status {
				depleted = append(depleted, movedBatch{batch: after, from: alloc.Status})
			}
		}

		if exp.ReferenceNumber == "" {
			prefix := domain.ExportReferencePrefix(exportDate)
			seq, err := a.stores.Exports.NextSequence(ctx, prefix)
			if err != nil {
				return fmt.Errorf("next export reference: %w", err)
			}
			exp.ReferenceNumber = domain.FormatReference(prefix, seq)
		}
		return a.stores.Exports.Create(ctx, exp)
	})
	if err != nil {
		return nil, nil, err
	}
	return exp, depleted, nil
}

func (a *ExportAllocator) planManual(ctx context.Context, req *domain.ExportRequest) ([]domain.Allocation, error) {
	lines := req.Lines()
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.BatchID
	}

	found, err := a.stores.Batches.GetByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	loaded := make([]*domain.Batch, 0, len(found))
	for _, b := range found {
		loaded = append(loaded, b)
	}
	current, err := a.monitor.ReclassifyBatches(ctx, loaded)
	if err != nil {
		return nil, err
	}
	batches := make(map[string]*domain.Batch, len(current))
	for _, b := range current {
		batches[b.ID] = b
	}

	allocations, invalid, short := domain.PlanManual(lines, batches, req.Reason())
	if len(invalid) > 0 {
		return nil, errors.ValidationLines(append(invalid, short...))
	}
	if len(short) > 0 {
		return nil, errors.InsufficientStock(short)
	}
	return allocations, nil
}

func (a *ExportAllocator) planAutomatic(ctx context.Context, req *domain.ExportRequest) ([]domain.Allocation, error) {
	requests := domain.MergeIngredientRequests(req.Requests())
	candidates := make(map[string][]*domain.Batch, len(requests))

	for _, r := range requests {
		if _, err := a.monitor.ReclassifyDue(ctx, r.IngredientID); err != nil {
			return nil, err
		}
		batches, err := a.stores.Batches.ListCandidates(ctx, r.IngredientID, []domain.BatchStatus{domain.BatchStatusAvailable})
		if err != nil {
			return nil, fmt.Errorf("load candidates: %w", err)
		}
		candidates[r.IngredientID] = batches
	}

	allocations, short := domain.PlanFEFO(requests, candidates)
	if len(short) > 0 {
		return nil, errors.InsufficientStock(short)
	}
	return allocations, nil
}

type movedBatch struct {
	batch *domain.Batch
	from  domain.BatchStatus
}

func (a *ExportAllocator) afterCommit(ctx context.Context, exp *domain.Export, changed []movedBatch) {
	ingredientIDs := make([]string, len(exp.Items))
	for i, item := range exp.Items {
		ingredientIDs[i] = item.IngredientID
	}
	ingredientIDs = uniqueStrings(ingredientIDs)

	a.quantities.Invalidate(ctx, ingredientIDs...)
	for _, m := range changed {
		a.events.PublishBatchStatusChanged(ctx, m.batch, m.from)
	}
	a.events.PublishExportCreated(ctx, exp)
	a.aggregator.CheckLowStock(ctx, ingredientIDs...)

	a.logger.Info().
		Str("export_id", exp.ID).
		Str("reference_number", exp.ReferenceNumber).
		Str("reason", string(exp.Reason)).
		Str("mode", string(exp.Mode)).
		Int("items", len(exp.Items)).
		Str("total_quantity", exp.TotalQuantity().String()).
		Str("actor", actor.FromContext(ctx).String()).
		Msg("export created")
}

// GetExport returns an export with its items
func (a *ExportAllocator) GetExport(ctx context.Context, id string) (*domain.Export, error) {
	return a.stores.Exports.GetByID(ctx, id)
}

// ListExports lists exports newest first
func (a *ExportAllocator) ListExports(ctx context.Context, filter domain.ExportFilter, page, perPage int) ([]*domain.Export, int64, error) {
	return a.stores.Exports.List(ctx, filter, page, perPage)
}
