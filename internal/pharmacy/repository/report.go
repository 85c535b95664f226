package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/farmatrack/farmatrack-backend/pkg/database"
)

// InventoryReport is the raw material of the periodic report: every movement
// inside the period plus the stock standing at the moment the report ran.
type InventoryReport struct {
	From        time.Time             `json:"from"`
	To          time.Time             `json:"to"`
	GeneratedAt time.Time             `json:"generated_at"`
	History     []*DispensationRecord `json:"history"`
	Stock       []*LotWithMedication  `json:"stock"`
}

// ReportRepository assembles report data
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Build gathers the period history and the stock snapshot in one read-only
// repeatable read transaction, so the two sections describe the same instant.
// Depleted lots are left out of the stock section.
func (r *ReportRepository) Build(ctx context.Context, from, to, generatedAt time.Time) (*InventoryReport, error) {
	report := &InventoryReport{
		From:        from,
		To:          to,
		GeneratedAt: generatedAt,
	}

	historyQuery := `
		SELECT ` + dispensationJoinColumns + `
		FROM dispensations d
		JOIN lots l ON l.id = d.lot_id
		JOIN medications m ON m.id = l.medication_id
		WHERE d.dispensed_at >= $1 AND d.dispensed_at <= $2
		ORDER BY d.dispensed_at DESC
	`

	stockQuery := `
		SELECT ` + lotJoinColumns + `
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.current_quantity > 0
		ORDER BY m.name ASC, l.expiry_date ASC
	`

	err := r.db.ReadSnapshot(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &report.History, historyQuery, from, to); err != nil {
			return err
		}
		return tx.SelectContext(ctx, &report.Stock, stockQuery)
	})
	if err != nil {
		return nil, err
	}

	if report.History == nil {
		report.History = []*DispensationRecord{}
	}
	if report.Stock == nil {
		report.Stock = []*LotWithMedication{}
	}

	return report, nil
}
