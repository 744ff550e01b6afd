// Package memstore is an in-memory ledger for development and tests.
// One mutex serializes every unit of work, which gives the same no-oversell
// guarantee the Postgres conditional updates give.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
)

type txKey struct{}

// Store holds the whole ledger in memory
type Store struct {
	mu    sync.Mutex
	state *state
}

// state is copy-on-write: stored values are never mutated in place, so a
// shallow copy of the maps is a complete snapshot.
type state struct {
	batches     map[string]*domain.Batch
	imports     map[string]*domain.Import
	exports     map[string]*domain.Export
	alerts      map[string]*domain.Alert
	ingredients map[string]*domain.Ingredient
	suppliers   map[string]*domain.Supplier
}

// New creates an empty store
func New() *Store {
	return &Store{state: &state{
		batches:     make(map[string]*domain.Batch),
		imports:     make(map[string]*domain.Import),
		exports:     make(map[string]*domain.Export),
		alerts:      make(map[string]*domain.Alert),
		ingredients: make(map[string]*domain.Ingredient),
		suppliers:   make(map[string]*domain.Supplier),
	}}
}

// Stores exposes the store through the interfaces the stock services use
func (s *Store) Stores() service.Stores {
	return service.Stores{
		Tx:      s,
		Batches: &BatchStore{s: s},
		Imports: &ImportStore{s: s},
		Exports: &ExportStore{s: s},
		Alerts:  &AlertStore{s: s},
		Catalog: &CatalogStore{s: s},
	}
}

// Catalog returns the catalog read model, including its write side
func (s *Store) Catalog() *CatalogStore {
	return &CatalogStore{s: s}
}

// Transaction runs fn holding the store lock. Changes made by fn are discarded when it fails.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// do runs fn against the current state, taking the lock unless ctx already holds it
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

func (st *state) clone() *state {
	return &state{
		batches:     copyMap(st.batches),
		imports:     copyMap(st.imports),
		exports:     copyMap(st.exports),
		alerts:      copyMap(st.alerts),
		ingredients: copyMap(st.ingredients),
		suppliers:   copyMap(st.suppliers),
	}
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func paginate[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	start := (page - 1) * perPage
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortedByCreated[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
