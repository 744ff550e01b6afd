package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

const maxReferenceAttempts = 5

// ImportProcessor receives deliveries into the ledger
type ImportProcessor struct {
	stores     Stores
	ledger     *Ledger
	quantities *QuantityCache
	aggregator *Aggregator
	events     EventPublisher
	clock      Clock
	logger     *logger.Logger
}

// NewImportProcessor creates a new import processor
func NewImportProcessor(stores Stores, ledger *Ledger, quantities *QuantityCache, aggregator *Aggregator, events EventPublisher, clock Clock, log *logger.Logger) *ImportProcessor {
	return &ImportProcessor{
		stores:     stores,
		ledger:     ledger,
		quantities: quantities,
		aggregator: aggregator,
		events:     eventsOrNop(events),
		clock:      clock,
		logger:     log.WithComponent("import"),
	}
}

// CreateImport validates every line, then records the import and all of its batches
// in one transaction. Nothing is written when any line is invalid.
func (p *ImportProcessor) CreateImport(ctx context.Context, req domain.ImportRequest) (*domain.Import, error) {
	if err := p.validate(ctx, req); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	importDate := domain.StartOfDay(now)
	if req.ImportDate != nil {
		importDate = domain.StartOfDay(*req.ImportDate)
	}

	drafts := make([]domain.BatchDraft, len(req.Lines))
	for i, line := range req.Lines {
		drafts[i] = line.Draft(req.SupplierID)
	}

	reference := strings.TrimSpace(req.ReferenceNumber)
	generated := reference == ""
	prefix := domain.ImportReferencePrefix(req.Lines[0].IngredientID, importDate)

	var imp *domain.Import
	for attempt := 1; ; attempt++ {
		imp = &domain.Import{
			ID:              uuid.New().String(),
			SupplierID:      req.SupplierID,
			ReferenceNumber: reference,
			ImportDate:      importDate,
			Note:            req.Note,
			CreatedBy:       actor.IDFromContext(ctx),
			CreatedAt:       now,
		}

		err := p.stores.Tx.Transaction(ctx, func(ctx context.Context) error {
			if generated {
				seq, err := p.stores.Imports.NextSequence(ctx, prefix)
				if err != nil {
					return fmt.Errorf("next import reference: %w", err)
				}
				imp.ReferenceNumber = domain.FormatReference(prefix, seq)
			}
			if err := p.stores.Imports.Create(ctx, imp); err != nil {
				return err
			}
			batches, err := p.ledger.CreateBatches(ctx, imp.ID, drafts)
			if err != nil {
				return err
			}
			imp.Batches = batches
			return nil
		})
		if err == nil {
			break
		}
		if generated && errors.IsRetryable(err) && attempt < maxReferenceAttempts {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("import reference collision, retrying")
			continue
		}
		return nil, err
	}

	ingredientIDs := make([]string, len(imp.Batches))
	for i, b := range imp.Batches {
		ingredientIDs[i] = b.IngredientID
	}
	ingredientIDs = uniqueStrings(ingredientIDs)

	p.quantities.Invalidate(ctx, ingredientIDs...)
	p.events.PublishImportCreated(ctx, imp)
	p.aggregator.CheckLowStock(ctx, ingredientIDs...)

	p.logger.Info().
		Str("import_id", imp.ID).
		Str("reference_number", imp.ReferenceNumber).
		Str("supplier_id", imp.SupplierID).
		Int("batches", len(imp.Batches)).
		Str("actor", actor.FromContext(ctx).String()).
		Msg("import created")

	return imp, nil
}

func (p *ImportProcessor) validate(ctx context.Context, req domain.ImportRequest) error {
	details := make(map[string]string)
	var lines []errors.LineError

	if strings.TrimSpace(req.SupplierID) == "" {
		details["supplier_id"] = "is required"
	} else if !domain.IsID(req.SupplierID) {
		details["supplier_id"] = "must be a valid UUID"
	} else if _, err := p.stores.Catalog.GetSupplier(ctx, req.SupplierID); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return fmt.Errorf("load supplier: %w", err)
		}
		details["supplier_id"] = "supplier does not exist or has been deleted"
	}

	if len(req.Lines) == 0 {
		details["lines"] = "at least one line is required"
		return errors.Validation(details)
	}

	ids := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		if domain.IsID(line.IngredientID) {
			ids = append(ids, line.IngredientID)
		}
	}
	ingredients, err := p.stores.Catalog.GetIngredients(ctx, uniqueStrings(ids))
	if err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}

	seenLots := make(map[string]int)
	for i, line := range req.Lines {
		lineNo := i + 1
		lines = append(lines, draftLineErrors(lineNo, line.Draft(req.SupplierID))...)

		switch {
		case line.IngredientID == "":
		case !domain.IsID(line.IngredientID):
			lines = append(lines, errors.LineError{
				Line:         lineNo,
				IngredientID: line.IngredientID,
				Field:        "ingredient_id",
				Message:      "must be a valid UUID",
			})
		default:
			if _, ok := ingredients[line.IngredientID]; !ok {
				lines = append(lines, errors.LineError{
					Line:         lineNo,
					IngredientID: line.IngredientID,
					Field:        "ingredient_id",
					Message:      "ingredient does not exist or has been deleted",
				})
			}
		}

		key := line.LotKey()
		if key == "" || strings.TrimSpace(*line.LotNumber) == "" || !domain.IsID(line.IngredientID) {
			continue
		}
		if first, ok := seenLots[key]; ok {
			lines = append(lines, errors.LineError{
				Line:         lineNo,
				IngredientID: line.IngredientID,
				Field:        "lot_number",
				Message:      fmt.Sprintf("duplicates the lot number of line %d", first),
			})
			continue
		}
		seenLots[key] = lineNo

		exists, err := p.stores.Batches.LotExists(ctx, line.IngredientID, strings.TrimSpace(*line.LotNumber))
		if err != nil {
			return fmt.Errorf("check lot number: %w", err)
		}
		if exists {
			lines = append(lines, errors.LineError{
				Line:         lineNo,
				IngredientID: line.IngredientID,
				Field:        "lot_number",
				Message:      "already exists for this ingredient",
			})
		}
	}

	if req.ImportDate != nil && req.ImportDate.After(p.clock.Now().Add(24*time.Hour)) {
		details["import_date"] = "must not be in the future"
	}

	if len(details) == 0 && len(lines) == 0 {
		return nil
	}
	appErr := errors.ValidationLines(lines)
	if len(details) > 0 {
		appErr.Details = details
	}
	return appErr
}

// GetImport returns an import with its batches
func (p *ImportProcessor) GetImport(ctx context.Context, id string) (*domain.Import, error) {
	imp, err := p.stores.Imports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	batches, err := p.stores.Batches.ListByImport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}
	imp.Batches = batches
	return imp, nil
}

// ListImports lists imports newest first
func (p *ImportProcessor) ListImports(ctx context.Context, filter domain.ImportFilter, page, perPage int) ([]*domain.Import, int64, error) {
	return p.stores.Imports.List(ctx, filter, page, perPage)
}
