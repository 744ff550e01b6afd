package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reclassify derives a batch's status from its remaining quantity, expiry date and now.
// Terminal statuses are returned unchanged. The result depends on nothing else,
// so calling it again on its own output yields the same status.
func Reclassify(current BatchStatus, remaining decimal.Decimal, expiry *time.Time, now time.Time) BatchStatus {
	if current.IsTerminal() {
		return current
	}
	if !remaining.IsPositive() {
		return BatchStatusDepleted
	}
	if IsPastExpiry(expiry, now) {
		return BatchStatusExpired
	}
	return BatchStatusAvailable
}

// Reclassified returns the status b should have at now
func (b *Batch) Reclassified(now time.Time) BatchStatus {
	return Reclassify(b.Status, b.RemainingQuantity, b.ExpiryDate, now)
}

// IsPastExpiry reports whether a batch with this expiry date is expired at now.
// Expiry dates are calendar dates: stock is usable through the whole expiry day.
func IsPastExpiry(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return false
	}
	return StartOfDay(*expiry).Before(StartOfDay(now))
}

// DaysUntilExpiry returns whole days from now's date to the expiry date, or -1 without one.
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	if b.ExpiryDate == nil {
		return -1
	}
	return int(StartOfDay(*b.ExpiryDate).Sub(StartOfDay(now)).Hours() / 24)
}

// IsExpiringWithin reports whether an available batch expires within days of now
func (b *Batch) IsExpiringWithin(days int, now time.Time) bool {
	if b.Status != BatchStatusAvailable || b.ExpiryDate == nil {
		return false
	}
	d := b.DaysUntilExpiry(now)
	return d >= 0 && d <= days
}

// ExpiryHorizon is the last expiry date that counts as expiring within days of now
func ExpiryHorizon(now time.Time, days int) time.Time {
	return StartOfDay(now).AddDate(0, 0, days)
}

// StartOfDay truncates t to midnight UTC
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
