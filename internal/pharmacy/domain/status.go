// Package domain holds the pure business rules of the pharmacy ledger that
// do not touch persistence: lot status derivation and its thresholds.
package domain

import "time"

// Lot status labels as they appear on the dashboard and printed reports.
const (
	StatusOK         = "OK"
	StatusExpired    = "Vencido"
	StatusNearExpiry = "Próx. Venc."
	StatusLowStock   = "Baixo Estoque"
)

// Thresholds parameterize status derivation. They come from configuration
// and are passed down explicitly so the computation stays deterministic.
type Thresholds struct {
	LowStock        int
	AlertWindowDays int
}

// DefaultThresholds mirror the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{LowStock: 20, AlertWindowDays: 30}
}

// LotStatus derives the status of a lot as of a given instant. A depleted
// lot is always OK: it carries no alert regardless of its expiry date.
// Precedence when axes co-occur: expired > near-expiry > low stock.
func LotStatus(expiry time.Time, currentQty int, asOf time.Time, t Thresholds) string {
	if currentQty <= 0 {
		return StatusOK
	}

	switch ExpiryStatus(expiry, asOf, t.AlertWindowDays) {
	case StatusExpired:
		return StatusExpired
	case StatusNearExpiry:
		return StatusNearExpiry
	}

	if IsLowStock(currentQty, t.LowStock) {
		return StatusLowStock
	}

	return StatusOK
}

// ExpiryStatus classifies an expiry date against the alert window. It looks
// only at calendar days: a lot expiring later today is not yet expired.
func ExpiryStatus(expiry, asOf time.Time, windowDays int) string {
	today := truncateToDay(asOf)
	expiryDay := truncateToDay(expiry)

	if expiryDay.Before(today) {
		return StatusExpired
	}
	if !expiryDay.After(today.AddDate(0, 0, windowDays)) {
		return StatusNearExpiry
	}
	return StatusOK
}

// IsLowStock reports whether a non-depleted quantity sits below the
// replenishment threshold.
func IsLowStock(currentQty, threshold int) bool {
	return currentQty > 0 && currentQty < threshold
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
