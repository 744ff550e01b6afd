package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/repository"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	batchID      = "6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e"
	ingredientID = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"
	supplierID   = "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b"
	importID     = "11111111-2222-4333-8444-555555555555"
)

var now = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func batchRow(remaining string, status domain.BatchStatus) *sqlmock.Rows {
	expiry := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	return testutil.MockRows(testutil.BatchColumns...).AddRow(
		batchID, ingredientID, supplierID, importID, nil, "10", remaining,
		"2.5", nil, expiry, string(status), now, now,
	)
}

func TestBatchRepository_Decrement(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the updated batch", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := repository.NewBatchRepository(mockDB.Wrapped())

		mockDB.ExpectQuery("UPDATE batches SET").
			WithArgs(batchID, sqlmock.AnyArg(), sqlmock.AnyArg(), testutil.AnyTime{}).
			WillReturnRows(batchRow("7", domain.BatchStatusAvailable))

		b, err := repo.Decrement(ctx, batchID, decimal.NewFromInt(3), []domain.BatchStatus{domain.BatchStatusAvailable}, now)
		require.NoError(t, err)
		assert.True(t, b.RemainingQuantity.Equal(decimal.NewFromInt(7)))
		assert.Equal(t, domain.BatchStatusAvailable, b.Status)
		require.NotNil(t, b.ExpiryDate)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("guard miss on an existing batch is a retryable conflict", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := repository.NewBatchRepository(mockDB.Wrapped())

		mockDB.ExpectQuery("UPDATE batches SET").WillReturnRows(testutil.MockRows(testutil.BatchColumns...))
		mockDB.ExpectQuery("SELECT EXISTS(SELECT 1 FROM batches WHERE id = $1)").
			WithArgs(batchID).
			WillReturnRows(testutil.MockRows("exists").AddRow(true))

		_, err := repo.Decrement(ctx, batchID, decimal.NewFromInt(30), []domain.BatchStatus{domain.BatchStatusAvailable}, now)
		require.Error(t, err)
		assert.True(t, errors.IsRetryable(err))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("guard miss on a missing batch is not found", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := repository.NewBatchRepository(mockDB.Wrapped())

		mockDB.ExpectQuery("UPDATE batches SET").WillReturnRows(testutil.MockRows(testutil.BatchColumns...))
		mockDB.ExpectQuery("SELECT EXISTS").WillReturnRows(testutil.MockRows("exists").AddRow(false))

		_, err := repo.Decrement(ctx, batchID, decimal.NewFromInt(1), []domain.BatchStatus{domain.BatchStatusAvailable}, now)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("bounds check violation maps to conflict", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		repo := repository.NewBatchRepository(mockDB.Wrapped())

		mockDB.ExpectQuery("UPDATE batches SET").
			WillReturnError(&pq.Error{Code: "23514", Constraint: "batches_remaining_bounds"})

		_, err := repo.Decrement(ctx, batchID, decimal.NewFromInt(1), []domain.BatchStatus{domain.BatchStatusAvailable}, now)
		assert.True(t, errors.IsRetryable(err))
		mockDB.ExpectationsWereMet(t)
	})
}

func TestBatchRepository_UpdateStatus(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewBatchRepository(mockDB.Wrapped())

	mockDB.ExpectQuery("UPDATE batches SET status = $3").
		WithArgs(batchID, "available", "damaged", testutil.AnyTime{}).
		WillReturnRows(batchRow("10", domain.BatchStatusDamaged))

	b, err := repo.UpdateStatus(context.Background(), batchID, domain.BatchStatusAvailable, domain.BatchStatusDamaged, now)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusDamaged, b.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewBatchRepository(mockDB.Wrapped())

	mockDB.ExpectQuery("FROM batches WHERE id = $1").
		WithArgs(batchID).
		WillReturnRows(testutil.MockRows(testutil.BatchColumns...))

	_, err := repo.GetByID(context.Background(), batchID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_CreateMany_DuplicateLot(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewBatchRepository(mockDB.Wrapped())

	mockDB.ExpectExec("INSERT INTO batches").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "batches_lot_number_key"})

	lot := "L-1"
	err := repo.CreateMany(context.Background(), []*domain.Batch{{
		ID: batchID, IngredientID: ingredientID, SupplierID: supplierID, ImportID: importID, LotNumber: &lot,
		Quantity: decimal.NewFromInt(1), RemainingQuantity: decimal.NewFromInt(1), Status: domain.BatchStatusAvailable,
	}})

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "lot_number")
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_SumAvailable(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewBatchRepository(mockDB.Wrapped())

	mockDB.ExpectQuery("SELECT COALESCE(SUM(remaining_quantity), 0) FROM batches").
		WithArgs(ingredientID).
		WillReturnRows(testutil.MockRows("sum").AddRow("12.5"))

	total, err := repo.SumAvailable(context.Background(), ingredientID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("12.5")))
	mockDB.ExpectationsWereMet(t)
}

func TestBatchRepository_Summarize(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewBatchRepository(mockDB.Wrapped())

	expiry := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery("GROUP BY status").
		WithArgs(ingredientID).
		WillReturnRows(testutil.MockRows("status", "batch_count", "remaining", "value", "nearest_expiry").
			AddRow("available", 2, "13", "32.5", expiry).
			AddRow("damaged", 1, "4", "10", nil).
			AddRow("depleted", 3, "0", "0", nil))

	summary, err := repo.Summarize(context.Background(), ingredientID)
	require.NoError(t, err)
	assert.True(t, summary.CurrentQuantity.Equal(decimal.NewFromInt(13)))
	assert.True(t, summary.DamagedQuantity.Equal(decimal.NewFromInt(4)))
	assert.True(t, summary.ExpiredQuantity.IsZero())
	assert.Equal(t, 3, summary.BatchCounts[domain.BatchStatusDepleted])
	assert.Equal(t, 0, summary.BatchCounts[domain.BatchStatusExpired])
	require.NotNil(t, summary.NearestExpiry)
	assert.True(t, summary.NearestExpiry.Equal(expiry))
	mockDB.ExpectationsWereMet(t)
}
