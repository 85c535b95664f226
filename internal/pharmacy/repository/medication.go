package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farmatrack/farmatrack-backend/pkg/database"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
)

// Medication represents a catalog entry
type Medication struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	ActiveIngredient  *string   `db:"active_ingredient" json:"active_ingredient,omitempty"`
	PrescriptionClass *string   `db:"prescription_class" json:"prescription_class,omitempty"`
	Manufacturer      *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Description       *string   `db:"description" json:"description,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// MedicationUpdate enumerates the fields a patch may change. Only non-nil
// fields are applied; anything else on the entity is immutable through this
// path.
type MedicationUpdate struct {
	Name              *string `json:"name,omitempty"`
	ActiveIngredient  *string `json:"active_ingredient,omitempty"`
	PrescriptionClass *string `json:"prescription_class,omitempty"`
	Manufacturer      *string `json:"manufacturer,omitempty"`
	Description       *string `json:"description,omitempty"`
}

// MedicationFilter narrows List results
type MedicationFilter struct {
	NameContains      string
	PrescriptionClass string
}

// medicationSortColumns whitelists sortable fields
var medicationSortColumns = map[string]string{
	"name":               "name",
	"prescription_class": "prescription_class",
	"manufacturer":       "manufacturer",
	"created_at":         "created_at",
}

// MedicationRepository handles medication persistence
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// Create creates a new medication. A duplicate name (case-insensitive)
// surfaces as a conflict.
func (r *MedicationRepository) Create(ctx context.Context, med *Medication) error {
	if med.ID == "" {
		med.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medications (
			id, name, active_ingredient, prescription_class, manufacturer, description
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		med.ID, med.Name, med.ActiveIngredient, med.PrescriptionClass,
		med.Manufacturer, med.Description,
	).Scan(&med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}
	return nil
}

// GetByID gets a medication by ID
func (r *MedicationRepository) GetByID(ctx context.Context, id string) (*Medication, error) {
	var med Medication
	query := `
		SELECT id, name, active_ingredient, prescription_class, manufacturer,
		       description, created_at, updated_at
		FROM medications WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medication")
		}
		return nil, err
	}
	return &med, nil
}

// Exists reports whether a medication exists
func (r *MedicationRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM medications WHERE id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// List lists medications with filtering, sorting and pagination.
// Default order is name ascending.
func (r *MedicationRepository) List(ctx context.Context, filter MedicationFilter, sortBy, sortDir string, page, perPage int) ([]*Medication, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.NameContains != "" {
		args = append(args, "%"+filter.NameContains+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.PrescriptionClass != "" {
		args = append(args, "%"+filter.PrescriptionClass+"%")
		where = append(where, fmt.Sprintf("prescription_class ILIKE $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := `SELECT COUNT(*) FROM medications WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	orderClause := orderBy(medicationSortColumns, sortBy, sortDir, "name ASC")

	offset := (page - 1) * perPage
	args = append(args, perPage, offset)
	query := fmt.Sprintf(`
		SELECT id, name, active_ingredient, prescription_class, manufacturer,
		       description, created_at, updated_at
		FROM medications
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderClause, len(args)-1, len(args))

	var meds []*Medication
	if err := r.db.SelectContext(ctx, &meds, query, args...); err != nil {
		return nil, 0, err
	}

	return meds, total, nil
}

// Update applies the non-nil fields of the patch
func (r *MedicationRepository) Update(ctx context.Context, id string, patch MedicationUpdate) (*Medication, error) {
	set := []string{}
	args := []interface{}{}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		appendSet("name", *patch.Name)
	}
	if patch.ActiveIngredient != nil {
		appendSet("active_ingredient", *patch.ActiveIngredient)
	}
	if patch.PrescriptionClass != nil {
		appendSet("prescription_class", *patch.PrescriptionClass)
	}
	if patch.Manufacturer != nil {
		appendSet("manufacturer", *patch.Manufacturer)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}

	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	set = append(set, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE medications SET %s WHERE id = $%d`,
		strings.Join(set, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return nil, mapped
		}
		return nil, err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, errors.NotFound("medication")
	}

	return r.GetByID(ctx, id)
}

// Delete removes a medication. The FK RESTRICT from lots turns a referenced
// delete into a conflict; the rejection never cascades.
func (r *MedicationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		if mapped := database.MapPQError(err); mapped != nil {
			return mapped
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medication")
	}

	return nil
}

// orderBy resolves a requested sort against a column whitelist, falling back
// to the given default clause.
func orderBy(columns map[string]string, sortBy, sortDir, def string) string {
	column, ok := columns[sortBy]
	if !ok {
		return def
	}
	dir := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		dir = "DESC"
	}
	return column + " " + dir
}
