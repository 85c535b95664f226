// Command seed loads a small set of sample data for local development:
// one operator account, a handful of medications, and lots in every status
// the dashboard can show.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/config"
	"github.com/farmatrack/farmatrack-backend/pkg/database"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("seed", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}

	if err := seed(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}

	log.Info().Msg("seeding complete")
}

func seed(ctx context.Context, db *database.DB, log *logger.Logger) error {
	userRepo := repository.NewUserRepository(db)
	medRepo := repository.NewMedicationRepository(db)
	lotRepo := repository.NewLotRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("farmatrack123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &repository.User{
		Name:         "Administrador",
		Email:        "admin@farmatrack.local",
		PasswordHash: string(hash),
	}
	if err := create(log, "user", admin.Email, userRepo.Create(ctx, admin)); err != nil {
		return err
	}

	type medSpec struct {
		name       string
		ingredient string
		class      string
	}
	meds := []medSpec{
		{"Dipirona 500mg", "Dipirona Sódica", "OTC"},
		{"Amoxicilina 500mg", "Amoxicilina", "Tarja Vermelha"},
		{"Clonazepam 2mg", "Clonazepam", "Tarja Preta"},
		{"Losartana 50mg", "Losartana Potássica", "Tarja Vermelha"},
	}

	medIDs := map[string]string{}
	for _, m := range meds {
		ingredient, class := m.ingredient, m.class
		med := &repository.Medication{
			Name:              m.name,
			ActiveIngredient:  &ingredient,
			PrescriptionClass: &class,
		}
		err := medRepo.Create(ctx, med)
		if err != nil {
			if errors.Is(err, errors.ErrConflict) {
				log.Info().Str("medication", m.name).Msg("medication already exists, skipping")
				continue
			}
			return err
		}
		log.Info().Str("medication", m.name).Msg("medication created")
		medIDs[m.name] = med.ID
	}

	if len(medIDs) == 0 {
		// Everything already existed; nothing more to do without the IDs.
		log.Info().Msg("catalog already seeded, skipping lots")
		return nil
	}

	today := time.Now()
	type lotSpec struct {
		med     string
		number  string
		initial int
		expiry  time.Time
	}
	lots := []lotSpec{
		// One of each status: healthy, near expiry, expired, low stock.
		{"Dipirona 500mg", "LOTE2026-001", 250, today.AddDate(1, 0, 0)},
		{"Amoxicilina 500mg", "LOTE2026-002", 120, today.AddDate(0, 0, 15)},
		{"Clonazepam 2mg", "LOTE2024-001", 250, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"Losartana 50mg", "LOTE2026-003", 15, today.AddDate(1, 0, 0)},
	}

	lotIDs := map[string]string{}
	for _, l := range lots {
		medID, ok := medIDs[l.med]
		if !ok {
			continue
		}
		manufacture := l.expiry.AddDate(0, -6, 0)
		lot := &repository.Lot{
			MedicationID:    medID,
			LotNumber:       l.number,
			InitialQuantity: l.initial,
			CurrentQuantity: l.initial,
			ManufactureDate: &manufacture,
			ExpiryDate:      l.expiry,
		}
		if err := create(log, "lot", l.number, lotRepo.Create(ctx, lot)); err != nil {
			return err
		}
		lotIDs[l.number] = lot.ID
	}

	// A few dispensations spread over recent months so the dashboard has
	// consumption and frequency data to show.
	dispRepo := repository.NewDispensationRepository(db)
	type dispSpec struct {
		lot      string
		patient  string
		quantity int
		dispType string
		daysAgo  int
	}
	disps := []dispSpec{
		{"LOTE2026-001", "11122233344", 20, "Receita Comum", 70},
		{"LOTE2026-001", "55566677788", 30, "Receita Comum", 40},
		{"LOTE2026-001", "11122233344", 10, "Receita Comum", 5},
		{"LOTE2026-002", "99988877766", 25, "Receita Controlada", 12},
	}
	for _, d := range disps {
		lotID, ok := lotIDs[d.lot]
		if !ok {
			continue
		}
		dispensedAt := today.AddDate(0, 0, -d.daysAgo)
		err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
			if _, err := lotRepo.DecrementQuantity(ctx, tx, lotID, d.quantity); err != nil {
				return err
			}
			return dispRepo.CreateTx(ctx, tx, &repository.Dispensation{
				LotID:            lotID,
				PatientID:        d.patient,
				Quantity:         d.quantity,
				DispensationType: d.dispType,
				DispensedAt:      dispensedAt,
			})
		})
		if err != nil {
			return err
		}
		log.Info().Str("lot", d.lot).Int("quantity", d.quantity).Msg("dispensation recorded")
	}

	return nil
}

// create logs the outcome and swallows conflicts so the seeder stays
// re-runnable.
func create(log *logger.Logger, kind, name string, err error) error {
	switch {
	case err == nil:
		log.Info().Str(kind, name).Msg(kind + " created")
		return nil
	case errors.Is(err, errors.ErrConflict):
		log.Info().Str(kind, name).Msg(kind + " already exists, skipping")
		return nil
	default:
		return err
	}
}
