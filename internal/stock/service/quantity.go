package service

import (
	"context"

	"github.com/restoflow/restoflow-backend/pkg/cache"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// QuantityCache caches derived current quantities per ingredient.
// Every batch mutation invalidates the affected ingredients after commit.
type QuantityCache struct {
	cache  *cache.Cache[decimal.Decimal]
	logger *logger.Logger
}

// NewQuantityCache creates a quantity cache over cache
func NewQuantityCache(c *cache.Cache[decimal.Decimal], log *logger.Logger) *QuantityCache {
	return &QuantityCache{cache: c, logger: log}
}

func (q *QuantityCache) get(ctx context.Context, ingredientID string, load func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if q == nil {
		return load(ctx)
	}
	return q.cache.Get(ctx, "qty:"+ingredientID, load)
}

// Invalidate drops the cached quantities of ingredientIDs. Failures are logged;
// entries then expire with the cache TTL.
func (q *QuantityCache) Invalidate(ctx context.Context, ingredientIDs ...string) {
	if q == nil || len(ingredientIDs) == 0 {
		return
	}
	keys := make([]string, len(ingredientIDs))
	for i, id := range ingredientIDs {
		keys[i] = "qty:" + id
	}
	if err := q.cache.Invalidate(ctx, keys...); err != nil {
		q.logger.Warn().Err(err).Strs("ingredient_ids", ingredientIDs).Msg("failed to invalidate quantity cache")
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
