package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateImport_CreatesOneAvailableBatchPerLine(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	butter := f.addIngredient(t, "Butter", "0")

	imp, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines: []domain.ImportLine{
			line(flour, "25", dayOffset(f, 30)),
			line(butter, "4.5", dayOffset(f, 7)),
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(imp.ReferenceNumber, "IMP-"))
	assert.True(t, strings.HasSuffix(imp.ReferenceNumber, "-001"))
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", imp.CreatedBy)
	require.Len(t, imp.Batches, 2)

	for i, b := range imp.Batches {
		assert.Equal(t, domain.BatchStatusAvailable, b.Status)
		assert.True(t, b.Quantity.Equal(b.RemainingQuantity))
		assert.Equal(t, imp.ID, b.ImportID)
		assert.Equal(t, f.supplierID, b.SupplierID)
		if i > 0 {
			assert.True(t, b.CreatedAt.After(imp.Batches[i-1].CreatedAt), "batches keep line order")
		}
	}

	qty, err := f.aggregator.GetCurrentQuantity(f.ctx(), butter)
	require.NoError(t, err)
	assert.True(t, dec("4.5").Equal(qty))
	assert.Len(t, f.events.imports, 1)
}

func TestCreateImport_InvalidLineRejectsWholeImport(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")

	bad := line(flour, "0", nil)
	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines: []domain.ImportLine{
			line(flour, "10", nil),
			bad,
			line(flour, "5", nil),
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Line)
	assert.Equal(t, "quantity", lines[0].Field)

	batches, total, err := f.ledger.GetBatches(f.ctx(), domain.BatchFilter{IngredientID: flour}, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, batches)

	imports, total, err := f.imports.ListImports(f.ctx(), domain.ImportFilter{}, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, imports)
	assert.Empty(t, f.events.imports)
}

func TestCreateImport_ProductionAfterExpiryCreatesNothing(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")

	inverted := line(flour, "4", dayOffset(f, 2))
	inverted.ProductionDate = dayOffset(f, 3)

	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines: []domain.ImportLine{
			line(flour, "10", dayOffset(f, 5)),
			inverted,
			line(flour, "6", dayOffset(f, 9)),
		},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)

	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Line)
	assert.Equal(t, "expiry_date", lines[0].Field)

	_, total, err := f.ledger.GetBatches(f.ctx(), domain.BatchFilter{}, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, total)

	qty, err := f.aggregator.GetCurrentQuantity(f.ctx(), flour)
	require.NoError(t, err)
	assert.True(t, qty.IsZero())
}

func TestCreateImport_RejectsMalformedIDsAndPrecision(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")

	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines: []domain.ImportLine{
			line("flour", "1", nil),
			line(flour, "0.00005", nil),
		},
	})
	assert.ErrorIs(t, err, errors.ErrValidation)

	lines := errors.LinesOf(err)
	require.Len(t, lines, 2)
	assert.Equal(t, "ingredient_id", lines[0].Field)
	assert.Equal(t, "must be a valid UUID", lines[0].Message)
	assert.Equal(t, 2, lines[1].Line)
	assert.Equal(t, "quantity", lines[1].Field)

	_, err = f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: "fresh-farms",
		Lines:      []domain.ImportLine{line(flour, "1", nil)},
	})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "must be a valid UUID", appErr.Details["supplier_id"])
}

func TestCreateImport_ReportsEveryFailingLine(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	lot := "L-1"

	expired := line(flour, "3", dayOffset(f, 1))
	expired.ProductionDate = dayOffset(f, 5)
	first := line(flour, "1", nil)
	first.LotNumber = &lot
	dup := line(flour, "1", nil)
	dup.LotNumber = &lot

	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines: []domain.ImportLine{
			line("00000000-0000-0000-0000-00000000beef", "1", nil),
			expired,
			first,
			dup,
		},
	})
	require.Error(t, err)

	lines := errors.LinesOf(err)
	require.Len(t, lines, 3)
	assert.Equal(t, 1, lines[0].Line)
	assert.Equal(t, "ingredient_id", lines[0].Field)
	assert.Equal(t, 2, lines[1].Line)
	assert.Equal(t, "expiry_date", lines[1].Field)
	assert.Equal(t, 4, lines[2].Line)
	assert.Equal(t, "lot_number", lines[2].Field)
}

func TestCreateImport_RejectsDeletedSupplierAndIngredient(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	ctx := context.Background()

	require.NoError(t, f.store.Catalog().DeleteIngredient(ctx, flour, f.clock.Now()))
	require.NoError(t, f.store.Catalog().DeleteSupplier(ctx, f.supplierID, f.clock.Now()))

	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines:      []domain.ImportLine{line(flour, "1", nil)},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, "supplier_id")
	require.Len(t, appErr.Lines, 1)
	assert.Equal(t, "ingredient_id", appErr.Lines[0].Field)
}

func TestCreateImport_LotNumberMustBeNewForIngredient(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	sugar := f.addIngredient(t, "Sugar", "0")
	lot := "LOT-42"

	first := line(flour, "1", nil)
	first.LotNumber = &lot
	f.receive(t, first)

	// Same lot on another ingredient is fine.
	other := line(sugar, "1", nil)
	other.LotNumber = &lot
	f.receive(t, other)

	_, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{SupplierID: f.supplierID, Lines: []domain.ImportLine{first}})
	require.Error(t, err)
	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, "lot_number", lines[0].Field)
}

func TestCreateImport_ReferenceNumbers(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")

	a, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{SupplierID: f.supplierID, Lines: []domain.ImportLine{line(flour, "1", nil)}})
	require.NoError(t, err)
	b, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{SupplierID: f.supplierID, Lines: []domain.ImportLine{line(flour, "1", nil)}})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(a.ReferenceNumber, "-001"))
	assert.True(t, strings.HasSuffix(b.ReferenceNumber, "-002"))

	_, err = f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID:      f.supplierID,
		ReferenceNumber: "INV-7781",
		Lines:           []domain.ImportLine{line(flour, "1", nil)},
	})
	require.NoError(t, err)

	_, err = f.imports.CreateImport(f.ctx(), domain.ImportRequest{
		SupplierID:      f.supplierID,
		ReferenceNumber: "INV-7781",
		Lines:           []domain.ImportLine{line(flour, "1", nil)},
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestCreateImport_WithoutActorRecordsSystem(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")

	imp, err := f.imports.CreateImport(context.Background(), domain.ImportRequest{
		SupplierID: f.supplierID,
		Lines:      []domain.ImportLine{line(flour, "1", nil)},
	})
	require.NoError(t, err)
	assert.Equal(t, actor.SystemID, imp.CreatedBy)
}

func TestGetImport_IncludesBatches(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	created := f.receive(t, line(flour, "3", nil), line(flour, "4", nil))

	imp, err := f.imports.GetImport(f.ctx(), created[0].ImportID)
	require.NoError(t, err)
	require.Len(t, imp.Batches, 2)
	assert.Equal(t, created[0].ID, imp.Batches[0].ID)
	assert.Equal(t, created[1].ID, imp.Batches[1].ID)

	_, err = f.imports.GetImport(f.ctx(), "00000000-0000-0000-0000-000000000999")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
