package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/farmatrack/farmatrack-backend/pkg/database"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
)

// Dispensation is one immutable outbound stock movement. Rows are only ever
// inserted; corrections happen through compensating entries, not edits.
type Dispensation struct {
	ID                 string    `db:"id" json:"id"`
	LotID              string    `db:"lot_id" json:"lot_id"`
	PatientID          string    `db:"patient_id" json:"patient_id"`
	PatientName        *string   `db:"patient_name" json:"patient_name,omitempty"`
	Quantity           int       `db:"quantity" json:"quantity"`
	DispensationType   string    `db:"dispensation_type" json:"dispensation_type"`
	PrescriptionNumber *string   `db:"prescription_number" json:"prescription_number,omitempty"`
	Note               *string   `db:"note" json:"note,omitempty"`
	DispensedAt        time.Time `db:"dispensed_at" json:"dispensed_at"`
}

// DispensationRecord is the read model for history listings: the movement
// plus the lot and medication it drew from.
type DispensationRecord struct {
	Dispensation
	LotNumber      string `db:"lot_number" json:"lot_number"`
	MedicationID   string `db:"medication_id" json:"medication_id"`
	MedicationName string `db:"medication_name" json:"medication_name"`
}

// DispensationFilter narrows List results
type DispensationFilter struct {
	LotID        string
	MedicationID string
	PatientID    string
	From         *time.Time
	To           *time.Time
}

const dispensationJoinColumns = `
	d.id, d.lot_id, d.patient_id, d.patient_name, d.quantity,
	d.dispensation_type, d.prescription_number, d.note, d.dispensed_at,
	l.lot_number, l.medication_id, m.name AS medication_name
`

// DispensationRepository handles dispensation persistence
type DispensationRepository struct {
	db *database.DB
}

// NewDispensationRepository creates a new dispensation repository
func NewDispensationRepository(db *database.DB) *DispensationRepository {
	return &DispensationRepository{db: db}
}

// CreateTx inserts the movement on the caller's transaction so it commits or
// rolls back together with the stock decrement it records.
func (r *DispensationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, d *Dispensation) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DispensedAt.IsZero() {
		d.DispensedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO dispensations (
			id, lot_id, patient_id, patient_name, quantity,
			dispensation_type, prescription_number, note, dispensed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.ExecContext(ctx, query,
		d.ID, d.LotID, d.PatientID, d.PatientName, d.Quantity,
		d.DispensationType, d.PrescriptionNumber, d.Note, d.DispensedAt,
	)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets one dispensation with its lot and medication context
func (r *DispensationRepository) GetByID(ctx context.Context, id string) (*DispensationRecord, error) {
	var rec DispensationRecord
	query := `
		SELECT ` + dispensationJoinColumns + `
		FROM dispensations d
		JOIN lots l ON l.id = d.lot_id
		JOIN medications m ON m.id = l.medication_id
		WHERE d.id = $1
	`
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("dispensation")
		}
		return nil, err
	}
	return &rec, nil
}

// List lists dispensations newest first
func (r *DispensationRepository) List(ctx context.Context, filter DispensationFilter, page, perPage int) ([]*DispensationRecord, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.LotID != "" {
		args = append(args, filter.LotID)
		where = append(where, fmt.Sprintf("d.lot_id = $%d", len(args)))
	}
	if filter.MedicationID != "" {
		args = append(args, filter.MedicationID)
		where = append(where, fmt.Sprintf("l.medication_id = $%d", len(args)))
	}
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		where = append(where, fmt.Sprintf("d.patient_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("d.dispensed_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("d.dispensed_at <= $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM dispensations d
		JOIN lots l ON l.id = d.lot_id
		JOIN medications m ON m.id = l.medication_id
		WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM dispensations d
		JOIN lots l ON l.id = d.lot_id
		JOIN medications m ON m.id = l.medication_id
		WHERE %s
		ORDER BY d.dispensed_at DESC
		LIMIT $%d OFFSET $%d
	`, dispensationJoinColumns, whereClause, len(args)-1, len(args))

	var recs []*DispensationRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, 0, err
	}

	return recs, total, nil
}
