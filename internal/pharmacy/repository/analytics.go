package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmatrack/farmatrack-backend/pkg/database"
)

// DashboardKPIs are the headline counters of the dashboard
type DashboardKPIs struct {
	TotalMedications       int64 `db:"total_medications" json:"total_medications"`
	TotalLots              int64 `db:"total_lots" json:"total_lots"`
	TotalUnits             int64 `db:"total_units" json:"total_units"`
	LowStockLots           int64 `db:"low_stock_lots" json:"low_stock_lots"`
	NearExpiryLots         int64 `db:"near_expiry_lots" json:"near_expiry_lots"`
	DispensationsThisMonth int64 `db:"dispensations_this_month" json:"dispensations_this_month"`
}

// ConsumptionEntry is one row of the top-consumed ranking
type ConsumptionEntry struct {
	MedicationID   string `db:"medication_id" json:"medication_id"`
	MedicationName string `db:"medication_name" json:"medication_name"`
	TotalDispensed int64  `db:"total_dispensed" json:"total_dispensed"`
}

// MonthCount is one bucket of the monthly frequency series. Months with no
// movements are not emitted.
type MonthCount struct {
	Month int   `db:"month" json:"month"`
	Count int64 `db:"count" json:"count"`
}

// DashboardSnapshot bundles everything the dashboard renders, all computed
// from the same point-in-time view of the data.
type DashboardSnapshot struct {
	AsOf             time.Time            `json:"as_of"`
	KPIs             DashboardKPIs        `json:"kpis"`
	TopConsumed      []*ConsumptionEntry  `json:"top_consumed"`
	MonthlyFrequency []*MonthCount        `json:"monthly_frequency"`
	NearExpiry       []*LotWithMedication `json:"near_expiry"`
	LowStock         []*LotWithMedication `json:"low_stock"`
}

// AnalyticsRepository computes aggregate views over the ledger
type AnalyticsRepository struct {
	db *database.DB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Snapshot gathers all dashboard aggregates in a single read-only repeatable
// read transaction, so KPIs, rankings and alert tables can never disagree
// about a movement that landed while they were being computed. Every
// time-sensitive predicate uses the caller-supplied asOf, not the wall clock.
// topLimit caps the consumption ranking; tableLimit caps both alert tables.
func (r *AnalyticsRepository) Snapshot(ctx context.Context, asOf time.Time, lowStockThreshold, windowDays, topLimit, tableLimit int) (*DashboardSnapshot, error) {
	snap := &DashboardSnapshot{AsOf: asOf}
	windowEnd := asOf.AddDate(0, 0, windowDays)

	err := r.db.ReadSnapshot(ctx, func(tx *sqlx.Tx) error {
		if err := r.kpis(ctx, tx, asOf, windowEnd, lowStockThreshold, &snap.KPIs); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &snap.TopConsumed, topConsumedQuery, topLimit); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &snap.MonthlyFrequency, monthlyFrequencyQuery, asOf); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &snap.NearExpiry, nearExpiryQuery, windowEnd, tableLimit); err != nil {
			return err
		}
		return tx.SelectContext(ctx, &snap.LowStock, lowStockQuery, lowStockThreshold, tableLimit)
	})
	if err != nil {
		return nil, err
	}

	if snap.TopConsumed == nil {
		snap.TopConsumed = []*ConsumptionEntry{}
	}
	if snap.MonthlyFrequency == nil {
		snap.MonthlyFrequency = []*MonthCount{}
	}
	if snap.NearExpiry == nil {
		snap.NearExpiry = []*LotWithMedication{}
	}
	if snap.LowStock == nil {
		snap.LowStock = []*LotWithMedication{}
	}

	return snap, nil
}

func (r *AnalyticsRepository) kpis(ctx context.Context, tx *sqlx.Tx, asOf, windowEnd time.Time, lowStockThreshold int, out *DashboardKPIs) error {
	// Depleted lots never count toward low-stock or near-expiry alerts.
	query := `
		SELECT
			(SELECT COUNT(*) FROM medications) AS total_medications,
			(SELECT COUNT(*) FROM lots) AS total_lots,
			(SELECT COALESCE(SUM(current_quantity), 0) FROM lots) AS total_units,
			(SELECT COUNT(*) FROM lots
				WHERE current_quantity > 0 AND current_quantity < $1) AS low_stock_lots,
			(SELECT COUNT(*) FROM lots
				WHERE current_quantity > 0 AND expiry_date <= $3::date) AS near_expiry_lots,
			(SELECT COUNT(*) FROM dispensations
				WHERE date_trunc('month', dispensed_at) = date_trunc('month', $2::timestamptz)
			) AS dispensations_this_month
	`
	return tx.GetContext(ctx, out, query, lowStockThreshold, asOf, windowEnd)
}

const topConsumedQuery = `
	SELECT l.medication_id, m.name AS medication_name,
	       SUM(d.quantity) AS total_dispensed
	FROM dispensations d
	JOIN lots l ON l.id = d.lot_id
	JOIN medications m ON m.id = l.medication_id
	GROUP BY l.medication_id, m.name
	ORDER BY total_dispensed DESC, m.name ASC
	LIMIT $1
`

const monthlyFrequencyQuery = `
	SELECT EXTRACT(MONTH FROM dispensed_at)::int AS month, COUNT(*) AS count
	FROM dispensations
	WHERE EXTRACT(YEAR FROM dispensed_at) = EXTRACT(YEAR FROM $1::timestamptz)
	GROUP BY month
	ORDER BY month ASC
`

const nearExpiryQuery = `
	SELECT ` + lotJoinColumns + `
	FROM lots l
	JOIN medications m ON m.id = l.medication_id
	WHERE l.current_quantity > 0 AND l.expiry_date <= $1::date
	ORDER BY l.expiry_date ASC, l.lot_number ASC
	LIMIT $2
`

const lowStockQuery = `
	SELECT ` + lotJoinColumns + `
	FROM lots l
	JOIN medications m ON m.id = l.medication_id
	WHERE l.current_quantity > 0 AND l.current_quantity < $1
	ORDER BY l.current_quantity ASC, l.lot_number ASC
	LIMIT $2
`
