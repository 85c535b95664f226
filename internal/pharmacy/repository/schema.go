package repository

import (
	"context"
	"fmt"

	"github.com/farmatrack/farmatrack-backend/pkg/database"
)

// schemaStatements is the idempotent DDL for the pharmacy tables. Constraint
// names are load-bearing: pkg/database maps them to the error taxonomy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		active_ingredient VARCHAR(255),
		prescription_class VARCHAR(100),
		manufacturer VARCHAR(255),
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Medication names are unique case-insensitively.
	`CREATE UNIQUE INDEX IF NOT EXISTS medications_name_lower_key
		ON medications (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS lots (
		id UUID PRIMARY KEY,
		medication_id UUID NOT NULL,
		lot_number VARCHAR(100) NOT NULL,
		initial_quantity INTEGER NOT NULL,
		current_quantity INTEGER NOT NULL,
		manufacture_date DATE,
		expiry_date DATE NOT NULL,
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT lots_lot_number_key UNIQUE (lot_number),
		CONSTRAINT lots_medication_id_fkey FOREIGN KEY (medication_id)
			REFERENCES medications (id) ON DELETE RESTRICT,
		CONSTRAINT lots_initial_quantity_positive CHECK (initial_quantity > 0),
		CONSTRAINT lots_quantity_range CHECK (
			current_quantity >= 0 AND current_quantity <= initial_quantity
		)
	)`,

	`CREATE INDEX IF NOT EXISTS lots_medication_id_idx ON lots (medication_id)`,
	`CREATE INDEX IF NOT EXISTS lots_expiry_date_idx ON lots (expiry_date)`,

	`CREATE TABLE IF NOT EXISTS dispensations (
		id UUID PRIMARY KEY,
		lot_id UUID NOT NULL,
		patient_id VARCHAR(100) NOT NULL,
		patient_name VARCHAR(255),
		quantity INTEGER NOT NULL,
		dispensation_type VARCHAR(100) NOT NULL,
		prescription_number VARCHAR(100),
		note TEXT,
		dispensed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT dispensations_lot_id_fkey FOREIGN KEY (lot_id)
			REFERENCES lots (id) ON DELETE RESTRICT,
		CONSTRAINT dispensations_quantity_positive CHECK (quantity > 0)
	)`,

	`CREATE INDEX IF NOT EXISTS dispensations_lot_id_idx ON dispensations (lot_id)`,
	`CREATE INDEX IF NOT EXISTS dispensations_dispensed_at_idx ON dispensations (dispensed_at)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
}

// Migrate applies the pharmacy schema. Safe to run on every service start.
func Migrate(ctx context.Context, db *database.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
