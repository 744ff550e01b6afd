package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// StatusChange is one persisted batch reclassification
type StatusChange struct {
	BatchID      string             `json:"batch_id"`
	IngredientID string             `json:"ingredient_id"`
	From         domain.BatchStatus `json:"from"`
	To           domain.BatchStatus `json:"to"`
}

// SweepResult summarizes one sweep cycle
type SweepResult struct {
	StartedAt      time.Time      `json:"started_at"`
	Reclassified   []StatusChange `json:"reclassified"`
	ExpiringSoon   int            `json:"expiring_soon_alerts"`
	LowStock       int            `json:"low_stock_alerts"`
	ResolvedAlerts int            `json:"resolved_alerts"`
}

// Monitor keeps persisted batch statuses in step with time.
// Reads call it lazily before they look at statuses; the scheduler calls Sweep periodically.
// Both paths go through domain.Reclassify.
type Monitor struct {
	stores           Stores
	quantities       *QuantityCache
	events           EventPublisher
	clock            Clock
	expiringSoonDays int
	logger           *logger.Logger
}

// NewMonitor creates a new expiry and status monitor
func NewMonitor(stores Stores, quantities *QuantityCache, events EventPublisher, clock Clock, expiringSoonDays int, log *logger.Logger) *Monitor {
	return &Monitor{
		stores:           stores,
		quantities:       quantities,
		events:           eventsOrNop(events),
		clock:            clock,
		expiringSoonDays: expiringSoonDays,
		logger:           log.WithComponent("monitor"),
	}
}

// ReclassifyDue persists every status change that is due at the current time.
// An empty ingredientID covers the whole ledger.
func (m *Monitor) ReclassifyDue(ctx context.Context, ingredientID string) ([]StatusChange, error) {
	now := m.clock.Now()
	due, err := m.stores.Batches.ListDue(ctx, ingredientID, now)
	if err != nil {
		return nil, fmt.Errorf("list due batches: %w", err)
	}
	changes, _, err := m.reclassify(ctx, due, now)
	return changes, err
}

// ReclassifyBatches persists due status changes for the given batches and returns
// them with their current statuses.
func (m *Monitor) ReclassifyBatches(ctx context.Context, batches []*domain.Batch) ([]*domain.Batch, error) {
	_, updated, err := m.reclassify(ctx, batches, m.clock.Now())
	return updated, err
}

func (m *Monitor) reclassify(ctx context.Context, batches []*domain.Batch, now time.Time) ([]StatusChange, []*domain.Batch, error) {
	var changes []StatusChange
	updated := make([]*domain.Batch, len(batches))
	var touched []string

	for i, b := range batches {
		updated[i] = b
		to := b.Reclassified(now)
		if to == b.Status {
			continue
		}

		moved, err := m.stores.Batches.UpdateStatus(ctx, b.ID, b.Status, to, now)
		if errors.IsRetryable(err) {
			// Someone else moved it first; report what is stored now.
			current, getErr := m.stores.Batches.GetByID(ctx, b.ID)
			if getErr != nil {
				return changes, updated, getErr
			}
			updated[i] = current
			continue
		}
		if err != nil {
			return changes, updated, fmt.Errorf("reclassify batch %s: %w", b.ID, err)
		}

		updated[i] = moved
		changes = append(changes, StatusChange{BatchID: b.ID, IngredientID: b.IngredientID, From: b.Status, To: to})
		touched = append(touched, b.IngredientID)
		m.events.PublishBatchStatusChanged(ctx, moved, b.Status)
		m.logger.Info().
			Str("batch_id", b.ID).
			Str("ingredient_id", b.IngredientID).
			Str("from", string(b.Status)).
			Str("to", string(to)).
			Msg("batch reclassified")
	}

	m.quantities.Invalidate(ctx, uniqueStrings(touched)...)
	return changes, updated, nil
}

// ScanExpiringSoon raises one alert per available batch expiring within the configured
// window and resolves alerts whose batch left that state. It returns the number of new alerts.
func (m *Monitor) ScanExpiringSoon(ctx context.Context) (raised, resolved int, err error) {
	now := m.clock.Now()
	batches, err := m.stores.Batches.ListExpiring(ctx, now, m.expiringSoonDays)
	if err != nil {
		return 0, 0, fmt.Errorf("list expiring batches: %w", err)
	}

	expiring := make(map[string]bool, len(batches))
	for _, b := range batches {
		expiring[b.ID] = true
		if m.raiseExpiring(ctx, b, now) {
			raised++
		}
	}

	open, err := m.stores.Alerts.ListOpen(ctx, domain.AlertTypeExpiringSoon)
	if err != nil {
		return raised, 0, fmt.Errorf("list open expiring alerts: %w", err)
	}
	for _, alert := range open {
		if expiring[alert.EntityID] {
			continue
		}
		if err := m.stores.Alerts.Resolve(ctx, alert.ID, now); err != nil {
			m.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to resolve expiring soon alert")
			continue
		}
		resolved++
	}

	return raised, resolved, nil
}

// NotifyExpiring raises the expiring soon alert for every listed batch inside the
// configured window. Alerts already open are left alone.
func (m *Monitor) NotifyExpiring(ctx context.Context, batches []*domain.Batch) int {
	now := m.clock.Now()
	raised := 0
	for _, b := range batches {
		if b.Status != domain.BatchStatusAvailable || b.ExpiryDate == nil {
			continue
		}
		if days := b.DaysUntilExpiry(now); days < 0 || days > m.expiringSoonDays {
			continue
		}
		if m.raiseExpiring(ctx, b, now) {
			raised++
		}
	}
	return raised
}

func (m *Monitor) raiseExpiring(ctx context.Context, b *domain.Batch, now time.Time) bool {
	days := b.DaysUntilExpiry(now)
	batchID := b.ID

	alert := &domain.Alert{
		ID:              uuid.New().String(),
		AlertType:       domain.AlertTypeExpiringSoon,
		EntityID:        b.ID,
		IngredientID:    b.IngredientID,
		BatchID:         &batchID,
		Message:         expiringMessage(b, days),
		CurrentQuantity: decimal.NewNullDecimal(b.RemainingQuantity),
		ExpiryDate:      b.ExpiryDate,
		DaysUntilExpiry: &days,
		CreatedAt:       now,
	}

	created, err := m.stores.Alerts.CreateIfAbsent(ctx, alert)
	if err != nil {
		m.logger.Error().Err(err).Str("batch_id", b.ID).Msg("failed to create expiring soon alert")
		return false
	}
	if created {
		m.events.PublishExpiringSoon(ctx, b, days)
	}
	return created
}

// Sweep reclassifies the whole ledger and refreshes expiring soon alerts
func (m *Monitor) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{StartedAt: m.clock.Now(), Reclassified: []StatusChange{}}

	changes, err := m.ReclassifyDue(ctx, "")
	result.Reclassified = append(result.Reclassified, changes...)
	if err != nil {
		return result, err
	}

	raised, resolved, err := m.ScanExpiringSoon(ctx)
	result.ExpiringSoon = raised
	result.ResolvedAlerts += resolved
	return result, err
}

func expiringMessage(b *domain.Batch, days int) string {
	lot := ""
	if b.LotNumber != nil {
		lot = " (lot " + *b.LotNumber + ")"
	}
	switch days {
	case 0:
		return fmt.Sprintf("batch %s%s expires today", b.ID, lot)
	case 1:
		return fmt.Sprintf("batch %s%s expires tomorrow", b.ID, lot)
	default:
		return fmt.Sprintf("batch %s%s expires in %d days", b.ID, lot, days)
	}
}
