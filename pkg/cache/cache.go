// Package cache provides a read-through TTL cache with explicit invalidation.
// Values are JSON encoded so that the same code runs against process memory or Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Store is a byte-oriented key/value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr bumps the counter at key and returns its new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Counter returns the counter at key, zero when it was never bumped.
	Counter(ctx context.Context, key string) (int64, error)
}

// envelope tags a cached value with the key generation it was loaded under.
type envelope[T any] struct {
	Gen   int64 `json:"g"`
	Value T     `json:"v"`
}

func generationKey(key string) string {
	return key + ":gen"
}

// Cache is a typed read-through view over a Store.
type Cache[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// New creates a cache whose keys are namespaced by prefix.
// A zero ttl disables caching: every Get loads.
func New[T any](store Store, prefix string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{store: store, prefix: prefix, ttl: ttl}
}

// Get returns the cached value for key, or calls load and caches its result.
// Store failures degrade to a direct load; a cache must never fail a read.
// A value loaded while the key was invalidated is returned but not served to later readers.
func (c *Cache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if c.ttl <= 0 {
		return load(ctx)
	}

	full := c.prefix + key
	gen, genErr := c.store.Counter(ctx, generationKey(full))
	if genErr == nil {
		if raw, ok, err := c.store.Get(ctx, full); err == nil && ok {
			var e envelope[T]
			if err := json.Unmarshal(raw, &e); err == nil && e.Gen == gen {
				return e.Value, nil
			}
		}
	}

	v, err := load(ctx)
	if err != nil || genErr != nil {
		return v, err
	}

	if raw, err := json.Marshal(envelope[T]{Gen: gen, Value: v}); err == nil {
		_ = c.store.Set(ctx, full, raw, c.ttl)
	}
	return v, nil
}

// Invalidate drops the cached values for keys and bumps their generation, so a
// load already in flight cannot put its result back.
func (c *Cache[T]) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
		if _, err := c.store.Incr(ctx, generationKey(full[i])); err != nil {
			return fmt.Errorf("failed to invalidate cache: %w", err)
		}
	}
	if err := c.store.Delete(ctx, full...); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}
