package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// CatalogStore is the in-memory ingredient and supplier read model
type CatalogStore struct {
	s *Store
}

func (c *CatalogStore) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	var out *domain.Ingredient
	err := c.s.do(ctx, func(st *state) error {
		found, ok := st.ingredients[id]
		if !ok || !found.Lifecycle.IsActive() {
			return errors.NotFound("ingredient")
		}
		cp := *found
		out = &cp
		return nil
	})
	return out, err
}

func (c *CatalogStore) GetIngredients(ctx context.Context, ids []string) (map[string]*domain.Ingredient, error) {
	out := make(map[string]*domain.Ingredient, len(ids))
	err := c.s.do(ctx, func(st *state) error {
		for _, id := range ids {
			if found, ok := st.ingredients[id]; ok && found.Lifecycle.IsActive() {
				cp := *found
				out[id] = &cp
			}
		}
		return nil
	})
	return out, err
}

func (c *CatalogStore) ListIngredients(ctx context.Context) ([]*domain.Ingredient, error) {
	out := []*domain.Ingredient{}
	err := c.s.do(ctx, func(st *state) error {
		for _, ing := range st.ingredients {
			if ing.Lifecycle.IsActive() {
				cp := *ing
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (c *CatalogStore) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var out *domain.Supplier
	err := c.s.do(ctx, func(st *state) error {
		found, ok := st.suppliers[id]
		if !ok || !found.Lifecycle.IsActive() {
			return errors.NotFound("supplier")
		}
		cp := *found
		out = &cp
		return nil
	})
	return out, err
}

// UpsertIngredient stores ing unless a newer version is already stored
func (c *CatalogStore) UpsertIngredient(ctx context.Context, ing *domain.Ingredient) error {
	return c.s.do(ctx, func(st *state) error {
		if existing, ok := st.ingredients[ing.ID]; ok && existing.UpdatedAt.After(ing.UpdatedAt) {
			return nil
		}
		cp := *ing
		st.ingredients[ing.ID] = &cp
		return nil
	})
}

// UpsertSupplier stores sup unless a newer version is already stored
func (c *CatalogStore) UpsertSupplier(ctx context.Context, sup *domain.Supplier) error {
	return c.s.do(ctx, func(st *state) error {
		if existing, ok := st.suppliers[sup.ID]; ok && existing.UpdatedAt.After(sup.UpdatedAt) {
			return nil
		}
		cp := *sup
		st.suppliers[sup.ID] = &cp
		return nil
	})
}

func (c *CatalogStore) DeleteIngredient(ctx context.Context, id string, at time.Time) error {
	return c.s.do(ctx, func(st *state) error {
		if existing, ok := st.ingredients[id]; ok && !existing.UpdatedAt.After(at) {
			cp := *existing
			cp.Lifecycle = domain.LifecycleDeleted
			cp.UpdatedAt = at
			st.ingredients[id] = &cp
		}
		return nil
	})
}

func (c *CatalogStore) DeleteSupplier(ctx context.Context, id string, at time.Time) error {
	return c.s.do(ctx, func(st *state) error {
		if existing, ok := st.suppliers[id]; ok && !existing.UpdatedAt.After(at) {
			cp := *existing
			cp.Lifecycle = domain.LifecycleDeleted
			cp.UpdatedAt = at
			st.suppliers[id] = &cp
		}
		return nil
	})
}
