package domain_test

import (
	"testing"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestReclassify(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		current   domain.BatchStatus
		remaining string
		expiry    *time.Time
		want      domain.BatchStatus
	}{
		{"available stays available", domain.BatchStatusAvailable, "5", date(2026, 3, 20), domain.BatchStatusAvailable},
		{"no expiry stays available", domain.BatchStatusAvailable, "5", nil, domain.BatchStatusAvailable},
		{"usable through expiry day", domain.BatchStatusAvailable, "5", date(2026, 3, 10), domain.BatchStatusAvailable},
		{"day after expiry is expired", domain.BatchStatusAvailable, "5", date(2026, 3, 9), domain.BatchStatusExpired},
		{"zero remaining is depleted", domain.BatchStatusAvailable, "0", date(2026, 3, 20), domain.BatchStatusDepleted},
		{"depleted wins over expired", domain.BatchStatusAvailable, "0", date(2026, 1, 1), domain.BatchStatusDepleted},
		{"damaged is terminal", domain.BatchStatusDamaged, "5", date(2026, 1, 1), domain.BatchStatusDamaged},
		{"expired is terminal", domain.BatchStatusExpired, "0", nil, domain.BatchStatusExpired},
		{"depleted is terminal", domain.BatchStatusDepleted, "0", date(2026, 3, 20), domain.BatchStatusDepleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := decimal.RequireFromString(tt.remaining)
			got := domain.Reclassify(tt.current, remaining, tt.expiry, now)
			assert.Equal(t, tt.want, got)

			again := domain.Reclassify(got, remaining, tt.expiry, now)
			assert.Equal(t, got, again, "reclassifying twice must not change the result")
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.BatchStatusAvailable, domain.BatchStatusDamaged))
	assert.True(t, domain.CanTransition(domain.BatchStatusAvailable, domain.BatchStatusExpired))
	assert.True(t, domain.CanTransition(domain.BatchStatusAvailable, domain.BatchStatusDepleted))
	assert.False(t, domain.CanTransition(domain.BatchStatusAvailable, domain.BatchStatusAvailable))

	for _, from := range []domain.BatchStatus{domain.BatchStatusDepleted, domain.BatchStatusExpired, domain.BatchStatusDamaged} {
		for _, to := range domain.AllBatchStatuses {
			assert.False(t, domain.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestBatch_ExpiryHelpers(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := &domain.Batch{Status: domain.BatchStatusAvailable, RemainingQuantity: decimal.NewFromInt(1), ExpiryDate: date(2026, 3, 13)}

	assert.Equal(t, 3, b.DaysUntilExpiry(now))
	assert.True(t, b.IsExpiringWithin(3, now))
	assert.False(t, b.IsExpiringWithin(2, now))

	b.Status = domain.BatchStatusDamaged
	assert.False(t, b.IsExpiringWithin(3, now), "only available batches are expiring")

	undated := &domain.Batch{Status: domain.BatchStatusAvailable}
	assert.Equal(t, -1, undated.DaysUntilExpiry(now))
	assert.False(t, undated.IsExpiringWithin(30, now))
}
