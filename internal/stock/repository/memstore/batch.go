package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// BatchStore is the in-memory batch table
type BatchStore struct {
	s *Store
}

func (b *BatchStore) CreateMany(ctx context.Context, batches []*domain.Batch) error {
	return b.s.do(ctx, func(st *state) error {
		lots := make(map[string]bool)
		for _, existing := range st.batches {
			if existing.LotNumber != nil {
				lots[existing.IngredientID+"/"+*existing.LotNumber] = true
			}
		}
		for _, nb := range batches {
			if _, ok := st.batches[nb.ID]; ok {
				return errors.Conflict("batch already exists")
			}
			if _, ok := st.ingredients[nb.IngredientID]; !ok {
				return errors.BadRequest("referenced record does not exist")
			}
			if nb.LotNumber != nil {
				key := nb.IngredientID + "/" + *nb.LotNumber
				if lots[key] {
					return errors.Validation(map[string]string{"lot_number": "already exists for this ingredient"})
				}
				lots[key] = true
			}
		}
		for _, nb := range batches {
			st.batches[nb.ID] = nb.Clone()
		}
		return nil
	})
}

func (b *BatchStore) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var out *domain.Batch
	err := b.s.do(ctx, func(st *state) error {
		found, ok := st.batches[id]
		if !ok {
			return errors.NotFound("batch")
		}
		out = found.Clone()
		return nil
	})
	return out, err
}

func (b *BatchStore) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Batch, error) {
	out := make(map[string]*domain.Batch, len(ids))
	err := b.s.do(ctx, func(st *state) error {
		for _, id := range ids {
			if found, ok := st.batches[id]; ok {
				out[id] = found.Clone()
			}
		}
		return nil
	})
	return out, err
}

func (b *BatchStore) List(ctx context.Context, filter domain.BatchFilter, now time.Time, page, perPage int) ([]*domain.Batch, int64, error) {
	matched := b.selectSorted(ctx, func(batch *domain.Batch) bool { return filter.Matches(batch, now) })
	return paginate(matched, page, perPage), int64(len(matched)), nil
}

func (b *BatchStore) ListByImport(ctx context.Context, importID string) ([]*domain.Batch, error) {
	matched := b.selectSorted(ctx, func(batch *domain.Batch) bool { return batch.ImportID == importID })
	sortedByCreated(matched, func(x, y *domain.Batch) bool {
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.Before(y.CreatedAt)
		}
		return x.ID < y.ID
	})
	return matched, nil
}

func (b *BatchStore) ListCandidates(ctx context.Context, ingredientID string, statuses []domain.BatchStatus) ([]*domain.Batch, error) {
	return b.selectSorted(ctx, func(batch *domain.Batch) bool {
		if batch.IngredientID != ingredientID || !batch.RemainingQuantity.IsPositive() {
			return false
		}
		for _, s := range statuses {
			if batch.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (b *BatchStore) ListDue(ctx context.Context, ingredientID string, now time.Time) ([]*domain.Batch, error) {
	return b.selectSorted(ctx, func(batch *domain.Batch) bool {
		if ingredientID != "" && batch.IngredientID != ingredientID {
			return false
		}
		return batch.Status == domain.BatchStatusAvailable && batch.Reclassified(now) != batch.Status
	}), nil
}

func (b *BatchStore) ListExpiring(ctx context.Context, now time.Time, days int) ([]*domain.Batch, error) {
	return b.selectSorted(ctx, func(batch *domain.Batch) bool {
		return batch.RemainingQuantity.IsPositive() && batch.IsExpiringWithin(days, now)
	}), nil
}

func (b *BatchStore) LotExists(ctx context.Context, ingredientID, lotNumber string) (bool, error) {
	lotNumber = strings.TrimSpace(lotNumber)
	exists := false
	err := b.s.do(ctx, func(st *state) error {
		for _, batch := range st.batches {
			if batch.IngredientID == ingredientID && batch.LotNumber != nil && *batch.LotNumber == lotNumber {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (b *BatchStore) Decrement(ctx context.Context, id string, amount decimal.Decimal, eligible []domain.BatchStatus, now time.Time) (*domain.Batch, error) {
	var out *domain.Batch
	err := b.s.do(ctx, func(st *state) error {
		current, ok := st.batches[id]
		if !ok {
			return errors.NotFound("batch")
		}
		statusOK := false
		for _, s := range eligible {
			if current.Status == s {
				statusOK = true
				break
			}
		}
		if !statusOK || current.RemainingQuantity.LessThan(amount) {
			return errors.Conflict("batch remaining quantity or status changed concurrently")
		}

		next := current.Clone()
		next.RemainingQuantity = current.RemainingQuantity.Sub(amount)
		if next.RemainingQuantity.IsZero() && next.Status == domain.BatchStatusAvailable {
			next.Status = domain.BatchStatusDepleted
		}
		next.UpdatedAt = now
		st.batches[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (b *BatchStore) UpdateStatus(ctx context.Context, id string, from, to domain.BatchStatus, now time.Time) (*domain.Batch, error) {
	var out *domain.Batch
	err := b.s.do(ctx, func(st *state) error {
		current, ok := st.batches[id]
		if !ok {
			return errors.NotFound("batch")
		}
		if current.Status != from {
			return errors.Conflict("batch status changed concurrently")
		}
		next := current.Clone()
		next.Status = to
		next.UpdatedAt = now
		st.batches[id] = next
		out = next.Clone()
		return nil
	})
	return out, err
}

func (b *BatchStore) SumAvailable(ctx context.Context, ingredientID string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := b.s.do(ctx, func(st *state) error {
		for _, batch := range st.batches {
			if batch.IngredientID == ingredientID && batch.Status == domain.BatchStatusAvailable {
				total = total.Add(batch.RemainingQuantity)
			}
		}
		return nil
	})
	return total, err
}

func (b *BatchStore) Summarize(ctx context.Context, ingredientID string) (*domain.StockSummary, error) {
	summary := domain.NewStockSummary(ingredientID)
	err := b.s.do(ctx, func(st *state) error {
		for _, batch := range st.batches {
			if batch.IngredientID == ingredientID {
				summary.Add(batch)
			}
		}
		return nil
	})
	return summary, err
}

func (b *BatchStore) selectSorted(ctx context.Context, keep func(*domain.Batch) bool) []*domain.Batch {
	matched := []*domain.Batch{}
	_ = b.s.do(ctx, func(st *state) error {
		for _, batch := range st.batches {
			if keep(batch) {
				matched = append(matched, batch.Clone())
			}
		}
		return nil
	})
	domain.SortFEFO(matched)
	return matched
}
