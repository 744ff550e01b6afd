package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/repository/memstore"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/cache"
	"github.com/restoflow/restoflow-backend/pkg/lock"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type statusEvent struct {
	BatchID string
	From    domain.BatchStatus
	To      domain.BatchStatus
}

// recordingEvents captures published events
type recordingEvents struct {
	mu            sync.Mutex
	imports       []*domain.Import
	exports       []*domain.Export
	statusChanges []statusEvent
	lowStock      []string
	expiringSoon  []string
	recovered     []string
}

func (r *recordingEvents) PublishImportCreated(_ context.Context, imp *domain.Import) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports = append(r.imports, imp)
}

func (r *recordingEvents) PublishExportCreated(_ context.Context, exp *domain.Export) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, exp)
}

func (r *recordingEvents) PublishBatchStatusChanged(_ context.Context, b *domain.Batch, from domain.BatchStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanges = append(r.statusChanges, statusEvent{BatchID: b.ID, From: from, To: b.Status})
}

func (r *recordingEvents) PublishLowStock(_ context.Context, ing *domain.Ingredient, _ decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lowStock = append(r.lowStock, ing.ID)
}

func (r *recordingEvents) PublishExpiringSoon(_ context.Context, b *domain.Batch, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expiringSoon = append(r.expiringSoon, b.ID)
}

func (r *recordingEvents) PublishStockRecovered(_ context.Context, ingredientID string, _ decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered = append(r.recovered, ingredientID)
}

type fixture struct {
	store      *memstore.Store
	quantities *service.QuantityCache
	clock      *fixedClock
	events     *recordingEvents
	monitor    *service.Monitor
	aggregator *service.Aggregator
	ledger     *service.Ledger
	imports    *service.ImportProcessor
	exports    *service.ExportAllocator
	alerts     *service.AlertService
	scheduler  *service.SweepScheduler
	supplierID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the stores the services run on
func newFixtureWith(t *testing.T, wrap func(service.Stores) service.Stores) *fixture {
	t.Helper()

	store := memstore.New()
	stores := store.Stores()
	if wrap != nil {
		stores = wrap(stores)
	}
	clock := &fixedClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	events := &recordingEvents{}
	log := logger.Nop()

	quantities := service.NewQuantityCache(cache.New[decimal.Decimal](cache.NewMemoryStore(), "test:", time.Minute), log)
	monitor := service.NewMonitor(stores, quantities, events, clock, 3, log)
	aggregator := service.NewAggregator(stores, monitor, quantities, events, clock, log)
	ledger := service.NewLedger(stores, monitor, quantities, aggregator, events, clock, log)

	f := &fixture{
		store:      store,
		quantities: quantities,
		clock:      clock,
		events:     events,
		monitor:    monitor,
		aggregator: aggregator,
		ledger:     ledger,
		imports:    service.NewImportProcessor(stores, ledger, quantities, aggregator, events, clock, log),
		exports: service.NewExportAllocator(stores, ledger, monitor, quantities, aggregator, events, clock,
			service.AllocatorConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, log),
		alerts:    service.NewAlertService(stores, clock),
		scheduler: service.NewSweepScheduler(monitor, aggregator, lock.NewLocalLocker(), time.Hour, time.Minute, log),
	}
	f.supplierID = f.addSupplier(t, "Fresh Farms")
	return f
}

func (f *fixture) ctx() context.Context {
	return actor.WithActor(context.Background(), &actor.Actor{
		ID:    "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		Name:  "Chef",
		Email: "chef@example.com",
	})
}

func (f *fixture) addSupplier(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	require.NoError(t, f.store.Catalog().UpsertSupplier(context.Background(), &domain.Supplier{
		ID: id, Name: name, Lifecycle: domain.LifecycleActive, UpdatedAt: f.clock.Now(),
	}))
	return id
}

func (f *fixture) addIngredient(t *testing.T, name, threshold string) string {
	t.Helper()
	id := uuid.New().String()
	require.NoError(t, f.store.Catalog().UpsertIngredient(context.Background(), &domain.Ingredient{
		ID:                id,
		Name:              name,
		Unit:              "kg",
		LowStockThreshold: decimal.RequireFromString(threshold),
		Lifecycle:         domain.LifecycleActive,
		UpdatedAt:         f.clock.Now(),
	}))
	return id
}

// receive imports one batch per line and returns the batches in line order
func (f *fixture) receive(t *testing.T, lines ...domain.ImportLine) []*domain.Batch {
	t.Helper()
	imp, err := f.imports.CreateImport(f.ctx(), domain.ImportRequest{SupplierID: f.supplierID, Lines: lines})
	require.NoError(t, err)
	require.Len(t, imp.Batches, len(lines))
	return imp.Batches
}

func line(ingredientID, qty string, expiry *time.Time) domain.ImportLine {
	return domain.ImportLine{
		IngredientID: ingredientID,
		Quantity:     decimal.RequireFromString(qty),
		UnitPrice:    decimal.RequireFromString("2.50"),
		ExpiryDate:   expiry,
	}
}

func dayOffset(f *fixture, days int) *time.Time {
	d := domain.StartOfDay(f.clock.Now()).AddDate(0, 0, days)
	return &d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) batch(t *testing.T, id string) *domain.Batch {
	t.Helper()
	b, err := f.store.Stores().Batches.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b
}
