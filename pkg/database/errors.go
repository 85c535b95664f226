package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/farmatrack/farmatrack-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return mapForeignKey(pqErr)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_range"):
		return errors.Validation(map[string]string{
			"quantity": "current quantity must stay between zero and the initial quantity",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be a positive integer",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey distinguishes a delete blocked by references from a dangling
// reference on insert.
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lots_medication_id"):
		// RESTRICT on medications <- lots fires both ways; the message that
		// matters to callers is the delete-blocked one, inserts validate the
		// medication id before touching the table.
		return errors.Conflict("medication cannot be deleted while lots reference it")
	case strings.Contains(constraint, "dispensations_lot_id"):
		return errors.BadRequest("referenced lot does not exist")
	default:
		return errors.BadRequest("referenced record does not exist")
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "medications_name"):
		return "a medication with this name already exists"
	case strings.Contains(constraint, "lots_lot_number"):
		return "a lot with this lot number already exists"
	case strings.Contains(constraint, "users_email"):
		return "a user with this email already exists"
	default:
		return "a record with these values already exists"
	}
}
