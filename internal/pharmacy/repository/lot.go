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

// Lot represents a received batch of one medication. The quantity pair is
// append-only history: current_quantity moves only through Create and
// DecrementQuantity, never through a generic update.
type Lot struct {
	ID              string     `db:"id" json:"id"`
	MedicationID    string     `db:"medication_id" json:"medication_id"`
	LotNumber       string     `db:"lot_number" json:"lot_number"`
	InitialQuantity int        `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int        `db:"current_quantity" json:"current_quantity"`
	ManufactureDate *time.Time `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiry_date"`
	Note            *string    `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LotWithMedication is the read model for lot listings: the lot plus a
// medication summary resolved at query time, plus the derived status filled
// in by the service layer.
type LotWithMedication struct {
	Lot
	MedicationName    string  `db:"medication_name" json:"medication_name"`
	ActiveIngredient  *string `db:"active_ingredient" json:"active_ingredient,omitempty"`
	PrescriptionClass *string `db:"prescription_class" json:"prescription_class,omitempty"`
	Status            string  `db:"-" json:"status"`
}

// LotUpdate enumerates the patchable non-quantity fields.
type LotUpdate struct {
	ManufactureDate *time.Time `json:"manufacture_date,omitempty"`
	Note            *string    `json:"note,omitempty"`
}

// LotFilter narrows List results
type LotFilter struct {
	LotNumberContains      string
	MedicationNameContains string
}

var lotSortColumns = map[string]string{
	"lot_number":      "l.lot_number",
	"expiry":          "l.expiry_date",
	"quantity":        "l.current_quantity",
	"medication_name": "m.name",
	"created_at":      "l.created_at",
}

const lotJoinColumns = `
	l.id, l.medication_id, l.lot_number, l.initial_quantity, l.current_quantity,
	l.manufacture_date, l.expiry_date, l.note, l.created_at, l.updated_at,
	m.name AS medication_name, m.active_ingredient, m.prescription_class
`

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create persists a new lot. A duplicate lot number surfaces as a conflict.
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, medication_id, lot_number, initial_quantity, current_quantity,
			manufacture_date, expiry_date, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.MedicationID, lot.LotNumber, lot.InitialQuantity,
		lot.CurrentQuantity, lot.ManufactureDate, lot.ExpiryDate, lot.Note,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a lot with its medication summary
func (r *LotRepository) GetByID(ctx context.Context, id string) (*LotWithMedication, error) {
	var lot LotWithMedication
	query := `
		SELECT ` + lotJoinColumns + `
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.id = $1
	`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// GetByNumber gets a lot by its externally visible lot number
func (r *LotRepository) GetByNumber(ctx context.Context, lotNumber string) (*LotWithMedication, error) {
	var lot LotWithMedication
	query := `
		SELECT ` + lotJoinColumns + `
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.lot_number = $1
	`
	if err := r.db.GetContext(ctx, &lot, query, lotNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundMsg(fmt.Sprintf("lot %q not found", lotNumber))
		}
		return nil, err
	}
	return &lot, nil
}

// List lists lots with their medication summary. Default order is expiry
// ascending so the soonest-expiring batches come first.
func (r *LotRepository) List(ctx context.Context, filter LotFilter, sortBy, sortDir string, page, perPage int) ([]*LotWithMedication, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.LotNumberContains != "" {
		args = append(args, "%"+filter.LotNumberContains+"%")
		where = append(where, fmt.Sprintf("l.lot_number ILIKE $%d", len(args)))
	}
	if filter.MedicationNameContains != "" {
		args = append(args, "%"+filter.MedicationNameContains+"%")
		where = append(where, fmt.Sprintf("m.name ILIKE $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	orderClause := orderBy(lotSortColumns, sortBy, sortDir, "l.expiry_date ASC")

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, lotJoinColumns, whereClause, orderClause, len(args)-1, len(args))

	var lots []*LotWithMedication
	if err := r.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, 0, err
	}

	return lots, total, nil
}

// ListByMedication lists all lots of one medication, soonest expiry first
func (r *LotRepository) ListByMedication(ctx context.Context, medicationID string) ([]*LotWithMedication, error) {
	var lots []*LotWithMedication
	query := `
		SELECT ` + lotJoinColumns + `
		FROM lots l
		JOIN medications m ON m.id = l.medication_id
		WHERE l.medication_id = $1
		ORDER BY l.expiry_date ASC
	`
	if err := r.db.SelectContext(ctx, &lots, query, medicationID); err != nil {
		return nil, err
	}
	return lots, nil
}

// UpdateDetails applies the non-nil fields of the patch. Quantities are not
// reachable through this path.
func (r *LotRepository) UpdateDetails(ctx context.Context, id string, patch LotUpdate) (*LotWithMedication, error) {
	set := []string{}
	args := []interface{}{}

	if patch.ManufactureDate != nil {
		args = append(args, *patch.ManufactureDate)
		set = append(set, fmt.Sprintf("manufacture_date = $%d", len(args)))
	}
	if patch.Note != nil {
		args = append(args, *patch.Note)
		set = append(set, fmt.Sprintf("note = $%d", len(args)))
	}

	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	set = append(set, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE lots SET %s WHERE id = $%d`,
		strings.Join(set, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, errors.NotFound("lot")
	}

	return r.GetByID(ctx, id)
}

// DecrementQuantity atomically consumes stock from a lot on the caller's
// transaction. The check and the write are a single conditional UPDATE, so
// two concurrent consumers can never drive the quantity negative: one of
// them matches zero rows and gets an insufficient-stock error carrying the
// quantity actually available.
func (r *LotRepository) DecrementQuantity(ctx context.Context, tx *sqlx.Tx, lotID string, amount int) (int, error) {
	var newQty int
	query := `
		UPDATE lots
		SET current_quantity = current_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND current_quantity >= $2
		RETURNING current_quantity
	`
	err := tx.QueryRowxContext(ctx, query, lotID, amount).Scan(&newQty)
	if err == nil {
		return newQty, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	// Zero rows: either the lot is gone or the stock does not cover the
	// request. Disambiguate inside the same transaction.
	var state struct {
		LotNumber       string `db:"lot_number"`
		CurrentQuantity int    `db:"current_quantity"`
	}
	probe := `SELECT lot_number, current_quantity FROM lots WHERE id = $1`
	if err := tx.GetContext(ctx, &state, probe, lotID); err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.NotFound("lot")
		}
		return 0, err
	}

	return 0, errors.InsufficientStock(state.LotNumber, state.CurrentQuantity)
}
