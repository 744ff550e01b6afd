package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

const importColumns = `id, supplier_id, reference_number, import_date, note, created_by, created_at`

// ImportRepository handles import persistence
type ImportRepository struct {
	db *database.DB
}

// NewImportRepository creates a new import repository
func NewImportRepository(db *database.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// Create inserts the import header. Batches are inserted by BatchRepository.CreateMany.
func (r *ImportRepository) Create(ctx context.Context, imp *domain.Import) error {
	query := `INSERT INTO imports (` + importColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		imp.ID, imp.SupplierID, imp.ReferenceNumber, imp.ImportDate, imp.Note, imp.CreatedBy, imp.CreatedAt,
	)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

// GetByID gets an import by ID without its batches
func (r *ImportRepository) GetByID(ctx context.Context, id string) (*domain.Import, error) {
	var imp domain.Import
	query := `SELECT ` + importColumns + ` FROM imports WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &imp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("import")
		}
		return nil, err
	}
	return &imp, nil
}

// List lists imports newest first
func (r *ImportRepository) List(ctx context.Context, filter domain.ImportFilter, page, perPage int) ([]*domain.Import, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.SupplierID != "" {
		add("supplier_id = $%d", filter.SupplierID)
	}
	if filter.From != nil {
		add("import_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("import_date <= $%d", *filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM imports`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + importColumns + ` FROM imports` + where +
		` ORDER BY import_date DESC, created_at DESC` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	imports := []*domain.Import{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &imports, query, args...); err != nil {
		return nil, 0, err
	}
	return imports, total, nil
}

// NextSequence returns the next free sequence number for reference numbers starting with prefix
func (r *ImportRepository) NextSequence(ctx context.Context, prefix string) (int, error) {
	return nextSequence(ctx, r.db, "imports", prefix)
}

func nextSequence(ctx context.Context, db *database.DB, table, prefix string) (int, error) {
	var refs []string
	query := `SELECT reference_number FROM ` + table + ` WHERE reference_number LIKE $1`
	if err := db.Conn(ctx).SelectContext(ctx, &refs, query, prefix+"%"); err != nil {
		return 0, err
	}
	return domain.NextReferenceSequence(prefix, refs), nil
}
