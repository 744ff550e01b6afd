package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// CatalogRepository is the local read model of ingredients and suppliers.
// Lookups only see active rows; deleted rows are kept for history.
type CatalogRepository struct {
	db *database.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetIngredient gets an active ingredient by ID
func (r *CatalogRepository) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	query := `
		SELECT id, name, unit, low_stock_threshold, lifecycle, updated_at
		FROM ingredients WHERE id = $1 AND lifecycle = 'active'
	`
	if err := r.db.Conn(ctx).GetContext(ctx, &ing, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("ingredient")
		}
		return nil, err
	}
	return &ing, nil
}

// GetIngredients returns the active ingredients among ids, keyed by id
func (r *CatalogRepository) GetIngredients(ctx context.Context, ids []string) (map[string]*domain.Ingredient, error) {
	result := make(map[string]*domain.Ingredient, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var ingredients []*domain.Ingredient
	query := `
		SELECT id, name, unit, low_stock_threshold, lifecycle, updated_at
		FROM ingredients WHERE id::text = ANY($1) AND lifecycle = 'active'
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &ingredients, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	for _, ing := range ingredients {
		result[ing.ID] = ing
	}
	return result, nil
}

// ListIngredients lists all active ingredients by name
func (r *CatalogRepository) ListIngredients(ctx context.Context) ([]*domain.Ingredient, error) {
	ingredients := []*domain.Ingredient{}
	query := `
		SELECT id, name, unit, low_stock_threshold, lifecycle, updated_at
		FROM ingredients WHERE lifecycle = 'active' ORDER BY name, id
	`
	if err := r.db.Conn(ctx).SelectContext(ctx, &ingredients, query); err != nil {
		return nil, err
	}
	return ingredients, nil
}

// GetSupplier gets an active supplier by ID
func (r *CatalogRepository) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var sup domain.Supplier
	query := `SELECT id, name, lifecycle, updated_at FROM suppliers WHERE id = $1 AND lifecycle = 'active'`
	if err := r.db.Conn(ctx).GetContext(ctx, &sup, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("supplier")
		}
		return nil, err
	}
	return &sup, nil
}

// UpsertIngredient creates or updates an ingredient from a catalog event.
// Events older than the stored row are ignored.
func (r *CatalogRepository) UpsertIngredient(ctx context.Context, ing *domain.Ingredient) error {
	query := `
		INSERT INTO ingredients (id, name, unit, low_stock_threshold, lifecycle, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			unit = EXCLUDED.unit,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			lifecycle = EXCLUDED.lifecycle,
			updated_at = EXCLUDED.updated_at
		WHERE ingredients.updated_at <= EXCLUDED.updated_at
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		ing.ID, ing.Name, ing.Unit, ing.LowStockThreshold, ing.Lifecycle, ing.UpdatedAt,
	)
	return err
}

// UpsertSupplier creates or updates a supplier from a catalog event.
// Events older than the stored row are ignored.
func (r *CatalogRepository) UpsertSupplier(ctx context.Context, sup *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (id, name, lifecycle, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			lifecycle = EXCLUDED.lifecycle,
			updated_at = EXCLUDED.updated_at
		WHERE suppliers.updated_at <= EXCLUDED.updated_at
	`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, sup.ID, sup.Name, sup.Lifecycle, sup.UpdatedAt)
	return err
}

// DeleteIngredient marks an ingredient deleted. Unknown ids are ignored.
func (r *CatalogRepository) DeleteIngredient(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE ingredients SET lifecycle = 'deleted', updated_at = $2 WHERE id = $1 AND updated_at <= $2`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, id, at)
	return err
}

// DeleteSupplier marks a supplier deleted. Unknown ids are ignored.
func (r *CatalogRepository) DeleteSupplier(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE suppliers SET lifecycle = 'deleted', updated_at = $2 WHERE id = $1 AND updated_at <= $2`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, id, at)
	return err
}
