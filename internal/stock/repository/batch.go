package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const batchColumns = `id, ingredient_id, supplier_id, import_id, lot_number, quantity, remaining_quantity,
	unit_price, production_date, expiry_date, status, created_at, updated_at`

const fefoOrder = `ORDER BY expiry_date ASC NULLS LAST, created_at ASC, id ASC`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateMany inserts batches in order. Call inside a transaction to make the insert atomic.
func (r *BatchRepository) CreateMany(ctx context.Context, batches []*domain.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for _, b := range batches {
		_, err := r.db.Conn(ctx).ExecContext(ctx, query,
			b.ID, b.IngredientID, b.SupplierID, b.ImportID, b.LotNumber, b.Quantity,
			b.RemainingQuantity, b.UnitPrice, b.ProductionDate, b.ExpiryDate, b.Status,
			b.CreatedAt, b.UpdatedAt,
		)
		if err != nil {
			if mapped := database.MapPQError(err); mapped != nil {
				return mapped
			}
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDs returns the batches that exist among ids, keyed by id
func (r *BatchRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Batch, error) {
	result := make(map[string]*domain.Batch, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var batches []*domain.Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id::text = ANY($1)`
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, b := range batches {
		result[b.ID] = b
	}
	return result, nil
}

// List lists batches matching filter in ledger order
func (r *BatchRepository) List(ctx context.Context, filter domain.BatchFilter, now time.Time, page, perPage int) ([]*domain.Batch, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.IngredientID != "" {
		add("ingredient_id = $%d", filter.IngredientID)
	}
	if filter.SupplierID != "" {
		add("supplier_id = $%d", filter.SupplierID)
	}
	if filter.ImportID != "" {
		add("import_id = $%d", filter.ImportID)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.ExpiringWithinDays != nil {
		add("expiry_date IS NOT NULL AND expiry_date <= $%d", domain.ExpiryHorizon(now, *filter.ExpiringWithinDays))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM batches`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + batchColumns + ` FROM batches` + where + ` ` + fefoOrder +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	batches := []*domain.Batch{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// ListByImport lists the batches created by one import, in the order they were received
func (r *BatchRepository) ListByImport(ctx context.Context, importID string) ([]*domain.Batch, error) {
	batches := []*domain.Batch{}
	query := `SELECT ` + batchColumns + ` FROM batches WHERE import_id = $1 ORDER BY created_at, id`
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, importID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListCandidates lists an ingredient's batches in statuses with stock left, in FEFO order
func (r *BatchRepository) ListCandidates(ctx context.Context, ingredientID string, statuses []domain.BatchStatus) ([]*domain.Batch, error) {
	batches := []*domain.Batch{}
	query := `
		SELECT ` + batchColumns + ` FROM batches
		WHERE ingredient_id = $1 AND status = ANY($2) AND remaining_quantity > 0
		` + fefoOrder
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, ingredientID, pq.Array(statusStrings(statuses))); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListDue lists available batches that are empty or past their expiry day at now.
// An empty ingredientID scans the whole ledger.
func (r *BatchRepository) ListDue(ctx context.Context, ingredientID string, now time.Time) ([]*domain.Batch, error) {
	query := `
		SELECT ` + batchColumns + ` FROM batches
		WHERE status = 'available'
		AND (remaining_quantity = 0 OR (expiry_date IS NOT NULL AND expiry_date < $1))
	`
	args := []interface{}{domain.StartOfDay(now)}
	if ingredientID != "" {
		query += ` AND ingredient_id = $2`
		args = append(args, ingredientID)
	}
	query += ` ` + fefoOrder

	batches := []*domain.Batch{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpiring lists available batches with stock whose expiry day falls within days of now
func (r *BatchRepository) ListExpiring(ctx context.Context, now time.Time, days int) ([]*domain.Batch, error) {
	query := `
		SELECT ` + batchColumns + ` FROM batches
		WHERE status = 'available' AND remaining_quantity > 0
		AND expiry_date IS NOT NULL AND expiry_date >= $1 AND expiry_date <= $2
		` + fefoOrder

	batches := []*domain.Batch{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &batches, query, domain.StartOfDay(now), domain.ExpiryHorizon(now, days)); err != nil {
		return nil, err
	}
	return batches, nil
}

// LotExists reports whether the ingredient already has a batch with lotNumber
func (r *BatchRepository) LotExists(ctx context.Context, ingredientID, lotNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM batches WHERE ingredient_id = $1 AND lot_number = $2)`
	if err := r.db.Conn(ctx).GetContext(ctx, &exists, query, ingredientID, lotNumber); err != nil {
		return false, err
	}
	return exists, nil
}

// Decrement debits amount from the batch in one conditional statement.
// The row must still hold amount and be in one of the eligible statuses; an
// available batch that reaches zero becomes depleted in the same write.
func (r *BatchRepository) Decrement(ctx context.Context, id string, amount decimal.Decimal, eligible []domain.BatchStatus, now time.Time) (*domain.Batch, error) {
	query := `
		UPDATE batches SET
			remaining_quantity = remaining_quantity - $2,
			status = CASE
				WHEN remaining_quantity - $2 = 0 AND status = 'available' THEN 'depleted'
				ELSE status
			END,
			updated_at = $4
		WHERE id = $1 AND remaining_quantity >= $2 AND status = ANY($3)
		RETURNING ` + batchColumns

	var batch domain.Batch
	err := r.db.Conn(ctx).GetContext(ctx, &batch, query, id, amount, pq.Array(statusStrings(eligible)), now)
	if err == sql.ErrNoRows {
		return nil, r.missOrConflict(ctx, id, "batch remaining quantity or status changed concurrently")
	}
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("decrement batch: %w", err)
	}
	return &batch, nil
}

// UpdateStatus moves the batch from one status to another in one conditional statement
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BatchStatus, now time.Time) (*domain.Batch, error) {
	query := `
		UPDATE batches SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + batchColumns

	var batch domain.Batch
	err := r.db.Conn(ctx).GetContext(ctx, &batch, query, id, from, to, now)
	if err == sql.ErrNoRows {
		return nil, r.missOrConflict(ctx, id, "batch status changed concurrently")
	}
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("update batch status: %w", err)
	}
	return &batch, nil
}

// SumAvailable sums the remaining quantity of the ingredient's available batches
func (r *BatchRepository) SumAvailable(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(remaining_quantity), 0) FROM batches
		WHERE ingredient_id = $1 AND status = 'available'
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &total, query, ingredientID); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

type statusTotals struct {
	Status        domain.BatchStatus `db:"status"`
	BatchCount    int                `db:"batch_count"`
	Remaining     decimal.Decimal    `db:"remaining"`
	Value         decimal.Decimal    `db:"value"`
	NearestExpiry *time.Time         `db:"nearest_expiry"`
}

// Summarize aggregates the ingredient's batches per status
func (r *BatchRepository) Summarize(ctx context.Context, ingredientID string) (*domain.StockSummary, error) {
	query := `
		SELECT status,
			COUNT(*) AS batch_count,
			COALESCE(SUM(remaining_quantity), 0) AS remaining,
			COALESCE(SUM(remaining_quantity * unit_price), 0) AS value,
			MIN(expiry_date) AS nearest_expiry
		FROM batches
		WHERE ingredient_id = $1
		GROUP BY status
	`

	var rows []statusTotals
	if err := r.db.Conn(ctx).SelectContext(ctx, &rows, query, ingredientID); err != nil {
		return nil, err
	}

	summary := domain.NewStockSummary(ingredientID)
	for _, row := range rows {
		summary.BatchCounts[row.Status] = row.BatchCount
		switch row.Status {
		case domain.BatchStatusAvailable:
			summary.CurrentQuantity = row.Remaining
			summary.AvailableValue = row.Value
			summary.NearestExpiry = row.NearestExpiry
		case domain.BatchStatusExpired:
			summary.ExpiredQuantity = row.Remaining
		case domain.BatchStatusDamaged:
			summary.DamagedQuantity = row.Remaining
		}
	}
	return summary, nil
}

func (r *BatchRepository) missOrConflict(ctx context.Context, id, message string) error {
	var exists bool
	if err := r.db.Conn(ctx).GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM batches WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("batch")
	}
	return errors.Conflict(message)
}

func statusStrings(statuses []domain.BatchStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
