package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

const exportColumns = `id, reference_number, export_date, reason, mode, notes, created_by, created_at`

const exportItemColumns = `id, export_id, position, batch_id, ingredient_id, quantity, unit_price`

// ExportRepository handles export persistence
type ExportRepository struct {
	db *database.DB
}

// NewExportRepository creates a new export repository
func NewExportRepository(db *database.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts the export and its items. Call inside the transaction that debits the batches.
func (r *ExportRepository) Create(ctx context.Context, exp *domain.Export) error {
	return r.db.Transaction(ctx, func(ctx context.Context) error {
		query := `INSERT INTO exports (` + exportColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := r.db.Conn(ctx).ExecContext(ctx, query,
			exp.ID, exp.ReferenceNumber, exp.ExportDate, exp.Reason, exp.Mode, exp.Notes, exp.CreatedBy, exp.CreatedAt,
		)
		if err != nil {
			if mapped := database.MapPQError(err); mapped != nil {
				return mapped
			}
			return fmt.Errorf("insert export: %w", err)
		}

		itemQuery := `INSERT INTO export_items (` + exportItemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, item := range exp.Items {
			_, err := r.db.Conn(ctx).ExecContext(ctx, itemQuery,
				item.ID, item.ExportID, item.Position, item.BatchID, item.IngredientID, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				if mapped := database.MapPQError(err); mapped != nil {
					return mapped
				}
				return fmt.Errorf("insert export item: %w", err)
			}
		}
		return nil
	})
}

// GetByID gets an export with its items
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*domain.Export, error) {
	var exp domain.Export
	query := `SELECT ` + exportColumns + ` FROM exports WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &exp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("export")
		}
		return nil, err
	}

	items := []*domain.ExportItem{}
	itemQuery := `SELECT ` + exportItemColumns + ` FROM export_items WHERE export_id = $1 ORDER BY position`
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, err
	}
	exp.Items = items
	return &exp, nil
}

// List lists exports newest first, each with its items
func (r *ExportRepository) List(ctx context.Context, filter domain.ExportFilter, page, perPage int) ([]*domain.Export, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Reason != "" {
		add("reason = $%d", string(filter.Reason))
	}
	if filter.Mode != "" {
		add("mode = $%d", string(filter.Mode))
	}
	if filter.From != nil {
		add("export_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("export_date <= $%d", *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM exports`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + exportColumns + ` FROM exports` + where +
		` ORDER BY export_date DESC, created_at DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	exports := []*domain.Export{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &exports, query, args...); err != nil {
		return nil, 0, err
	}
	if len(exports) == 0 {
		return exports, total, nil
	}

	ids := make([]string, len(exports))
	byID := make(map[string]*domain.Export, len(exports))
	for i, e := range exports {
		ids[i] = e.ID
		byID[e.ID] = e
		e.Items = []*domain.ExportItem{}
	}

	var items []*domain.ExportItem
	itemQuery := `SELECT ` + exportItemColumns + ` FROM export_items WHERE export_id::text = ANY($1) ORDER BY export_id, position`
	if err := r.db.Conn(ctx).SelectContext(ctx, &items, itemQuery, pq.Array(ids)); err != nil {
		return nil, 0, err
	}
	for _, item := range items {
		if e, ok := byID[item.ExportID]; ok {
			e.Items = append(e.Items, item)
		}
	}

	return exports, total, nil
}

// NextSequence returns the next free sequence number for reference numbers starting with prefix
func (r *ExportRepository) NextSequence(ctx context.Context, prefix string) (int, error) {
	return nextSequence(ctx, r.db, "exports", prefix)
}
