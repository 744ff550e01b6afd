package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildExport(t *testing.T, b *domain.ExportRequestBuilder) *domain.ExportRequest {
	t.Helper()
	req, err := b.Build()
	require.NoError(t, err)
	return req
}

func TestCreateExport_AutomaticFollowsFEFO(t *testing.T) {
	f := newFixture(t)
	milk := f.addIngredient(t, "Milk", "0")
	batches := f.receive(t,
		line(milk, "10", nil),
		line(milk, "8", dayOffset(f, 5)),
		line(milk, "5", dayOffset(f, 2)),
	)
	undated, later, sooner := batches[0], batches[1], batches[2]

	exp, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddIngredient(milk, dec("7"))))
	require.NoError(t, err)

	assert.Equal(t, domain.ExportModeAutomatic, exp.Mode)
	assert.True(t, strings.HasPrefix(exp.ReferenceNumber, "EXP-20240310-"))
	require.Len(t, exp.Items, 2)
	assert.Equal(t, sooner.ID, exp.Items[0].BatchID)
	assert.True(t, dec("5").Equal(exp.Items[0].Quantity))
	assert.Equal(t, 1, exp.Items[0].Position)
	assert.Equal(t, later.ID, exp.Items[1].BatchID)
	assert.True(t, dec("2").Equal(exp.Items[1].Quantity))

	assert.Equal(t, domain.BatchStatusDepleted, f.batch(t, sooner.ID).Status)
	assert.True(t, dec("6").Equal(f.batch(t, later.ID).RemainingQuantity))
	assert.True(t, dec("10").Equal(f.batch(t, undated.ID).RemainingQuantity))

	qty, err := f.aggregator.GetCurrentQuantity(f.ctx(), milk)
	require.NoError(t, err)
	assert.True(t, dec("16").Equal(qty))

	require.Len(t, f.events.statusChanges, 1)
	assert.Equal(t, statusEvent{BatchID: sooner.ID, From: domain.BatchStatusAvailable, To: domain.BatchStatusDepleted}, f.events.statusChanges[0])
	assert.Len(t, f.events.exports, 1)
}

func TestCreateExport_AutomaticShortfallChangesNothing(t *testing.T) {
	f := newFixture(t)
	milk := f.addIngredient(t, "Milk", "0")
	eggs := f.addIngredient(t, "Eggs", "0")
	batches := f.receive(t,
		line(milk, "5", dayOffset(f, 2)),
		line(milk, "8", dayOffset(f, 5)),
		line(eggs, "30", nil),
	)

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).
			AddIngredient(eggs, dec("6")).
			AddIngredient(milk, dec("20"))))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)

	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Line)
	assert.Equal(t, milk, lines[0].IngredientID)
	assert.True(t, dec("20").Equal(*lines[0].Requested))
	assert.True(t, dec("13").Equal(*lines[0].Available))

	for _, b := range batches {
		assert.True(t, b.Quantity.Equal(f.batch(t, b.ID).RemainingQuantity))
	}
	exports, total, err := f.exports.ListExports(f.ctx(), domain.ExportFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, exports)
}

func TestCreateExport_AutomaticSkipsExpiredStock(t *testing.T) {
	f := newFixture(t)
	milk := f.addIngredient(t, "Milk", "0")
	batches := f.receive(t,
		line(milk, "4", dayOffset(f, 1)),
		line(milk, "6", dayOffset(f, 10)),
	)

	f.clock.Advance(72 * time.Hour)

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddIngredient(milk, dec("8"))))
	require.Error(t, err)
	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.True(t, dec("6").Equal(*lines[0].Available))

	assert.Equal(t, domain.BatchStatusExpired, f.batch(t, batches[0].ID).Status)
}

func TestCreateExport_UnknownIngredientIsShortfall(t *testing.T) {
	f := newFixture(t)

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonOther).AddIngredient("00000000-0000-0000-0000-0000000000aa", dec("1"))))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInsufficientStock)
	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Available.IsZero())
}

func TestCreateExport_Manual(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	batches := f.receive(t, line(flour, "10", nil), line(flour, "3", nil))

	t.Run("debits the named batches", func(t *testing.T) {
		exp, err := f.exports.CreateExport(f.ctx(), buildExport(t,
			domain.NewExportRequestBuilder(domain.ExportReasonUsage).
				AddBatch(batches[1].ID, dec("3")).
				AddBatch(batches[0].ID, dec("2.5")).
				WithNotes("Sunday brunch")))
		require.NoError(t, err)

		assert.Equal(t, domain.ExportModeManual, exp.Mode)
		require.Len(t, exp.Items, 2)
		assert.Equal(t, batches[1].ID, exp.Items[0].BatchID)
		assert.True(t, dec("5.5").Equal(exp.TotalQuantity()))
		require.NotNil(t, exp.Notes)
		assert.Equal(t, "Sunday brunch", *exp.Notes)

		assert.Equal(t, domain.BatchStatusDepleted, f.batch(t, batches[1].ID).Status)
		assert.True(t, dec("7.5").Equal(f.batch(t, batches[0].ID).RemainingQuantity))

		stored, err := f.exports.GetExport(f.ctx(), exp.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, 2)
	})

	t.Run("duplicate lines are checked together", func(t *testing.T) {
		_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
			domain.NewExportRequestBuilder(domain.ExportReasonUsage).
				AddBatch(batches[0].ID, dec("5")).
				AddBatch(batches[0].ID, dec("5"))))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInsufficientStock)
		lines := errors.LinesOf(err)
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Line)
		assert.True(t, dec("2.5").Equal(*lines[0].Available))
		assert.True(t, dec("7.5").Equal(f.batch(t, batches[0].ID).RemainingQuantity))
	})

	t.Run("invalid lines are reported with shortfalls", func(t *testing.T) {
		_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
			domain.NewExportRequestBuilder(domain.ExportReasonUsage).
				AddBatch("00000000-0000-0000-0000-00000000dead", dec("1")).
				AddBatch(batches[1].ID, dec("1")).
				AddBatch(batches[0].ID, dec("100"))))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrValidation)

		lines := errors.LinesOf(err)
		require.Len(t, lines, 3)
		assert.Equal(t, "batch not found", lines[0].Message)
		assert.Equal(t, "status", lines[1].Field)
		assert.Equal(t, 3, lines[2].Line)
	})
}

func TestCreateExport_ConcurrentExportsNeverOversell(t *testing.T) {
	f := newFixture(t)
	oil := f.addIngredient(t, "Olive oil", "0")
	batch := f.receive(t, line(oil, "10", nil))[0]

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req, err := domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch(batch.ID, dec("6")).Build()
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = f.exports.CreateExport(f.ctx(), req)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errors.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, dec("4").Equal(f.batch(t, batch.ID).RemainingQuantity))

	qty, err := f.aggregator.GetCurrentQuantity(f.ctx(), oil)
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(qty))
}

func TestCreateExport_ConcurrentAutomaticExportsConserveStock(t *testing.T) {
	f := newFixture(t)
	rice := f.addIngredient(t, "Rice", "0")
	f.receive(t, line(rice, "4", dayOffset(f, 3)), line(rice, "4", dayOffset(f, 6)), line(rice, "4", nil))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	exported := decimal.Zero

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddIngredient(rice, dec("1.5")).Build()
			if err != nil {
				return
			}
			if exp, err := f.exports.CreateExport(f.ctx(), req); err == nil {
				mu.Lock()
				exported = exported.Add(exp.TotalQuantity())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	qty, err := f.aggregator.GetCurrentQuantity(context.Background(), rice)
	require.NoError(t, err)
	assert.True(t, dec("12").Equal(qty.Add(exported)), "remaining %s + exported %s", qty, exported)
	assert.False(t, qty.IsNegative())
}

func TestCreateExport_WriteOffDamagedStock(t *testing.T) {
	f := newFixture(t)
	fish := f.addIngredient(t, "Salmon", "0")
	batch := f.receive(t, line(fish, "6", dayOffset(f, 4)))[0]

	_, err := f.ledger.SetStatus(f.ctx(), batch.ID, domain.BatchStatusDamaged)
	require.NoError(t, err)

	_, err = f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch(batch.ID, dec("1"))))
	assert.ErrorIs(t, err, errors.ErrValidation)

	exp, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonDamaged).AddBatch(batch.ID, dec("6"))))
	require.NoError(t, err)
	assert.Equal(t, domain.ExportReasonDamaged, exp.Reason)

	stored := f.batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusDamaged, stored.Status, "terminal status survives the write-off")
	assert.True(t, stored.RemainingQuantity.IsZero())
}

func TestListExports_Filters(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	b := f.receive(t, line(flour, "10", nil))[0]

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch(b.ID, dec("1"))))
	require.NoError(t, err)
	_, err = f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonOther).AddIngredient(flour, dec("1"))))
	require.NoError(t, err)

	all, total, err := f.exports.ListExports(f.ctx(), domain.ExportFilter{}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	auto, total, err := f.exports.ListExports(f.ctx(), domain.ExportFilter{Mode: domain.ExportModeAutomatic}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, domain.ExportReasonOther, auto[0].Reason)
}

func TestCreateExport_DuplicateReferenceFailsWithoutRetrying(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	b := f.receive(t, line(flour, "10", nil))[0]

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch(b.ID, dec("1")).WithReferenceNumber("KITCHEN-7")))
	require.NoError(t, err)

	_, err = f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch(b.ID, dec("2")).WithReferenceNumber("KITCHEN-7")))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateReference)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "reference number already in use", appErr.Message)
	assert.Equal(t, errors.CodeConflict, appErr.Code)

	assert.True(t, dec("9").Equal(f.batch(t, b.ID).RemainingQuantity))
	assert.Len(t, f.events.exports, 1)
}

func TestCreateExport_RejectsMalformedIDs(t *testing.T) {
	f := newFixture(t)
	flour := f.addIngredient(t, "Flour", "0")
	f.receive(t, line(flour, "10", nil))

	_, err := f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).
			AddIngredient(flour, dec("1")).
			AddIngredient("flour", dec("1"))))
	assert.ErrorIs(t, err, errors.ErrValidation)
	lines := errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Line)
	assert.Equal(t, "ingredient_id", lines[0].Field)

	_, err = f.exports.CreateExport(f.ctx(), buildExport(t,
		domain.NewExportRequestBuilder(domain.ExportReasonUsage).AddBatch("batch-1", dec("1"))))
	assert.ErrorIs(t, err, errors.ErrValidation)
	lines = errors.LinesOf(err)
	require.Len(t, lines, 1)
	assert.Equal(t, "batch_id", lines[0].Field)

	qty, err := f.aggregator.GetCurrentQuantity(f.ctx(), flour)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(qty))
}
