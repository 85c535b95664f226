package repository_test

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/database"
	apperrors "github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/testutil"
)

// integrationDB is backed by a real PostgreSQL container. It stays nil under
// -short, where only the sqlmock tests in this package run.
var integrationDB *database.DB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	integrationDB, err = database.NewWithDSN(container.DSN, logger.New("test", "test"))
	if err != nil {
		container.Terminate(ctx)
		log.Fatalf("failed to connect to test database: %v", err)
	}

	if err := repository.Migrate(ctx, integrationDB); err != nil {
		container.Terminate(ctx)
		log.Fatalf("failed to apply schema: %v", err)
	}

	code := m.Run()

	integrationDB.Close()
	container.Terminate(ctx)
	os.Exit(code)
}

func createIntegrationMedication(t *testing.T, ctx context.Context, name string) *repository.Medication {
	t.Helper()
	ingredient := "Dipirona Sódica"
	med := &repository.Medication{
		Name:             name,
		ActiveIngredient: &ingredient,
	}
	require.NoError(t, repository.NewMedicationRepository(integrationDB).Create(ctx, med))
	return med
}

func createIntegrationLot(t *testing.T, ctx context.Context, medicationID, lotNumber string, quantity int) *repository.Lot {
	t.Helper()
	lot := &repository.Lot{
		MedicationID:    medicationID,
		LotNumber:       lotNumber,
		InitialQuantity: quantity,
		CurrentQuantity: quantity,
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
	}
	require.NoError(t, repository.NewLotRepository(integrationDB).Create(ctx, lot))
	return lot
}

func TestLotRepository_ConcurrentDispensations_NeverOversell(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	med := createIntegrationMedication(t, ctx, "Concurrent Dispense Med")
	lot := createIntegrationLot(t, ctx, med.ID, "LOT-CONC-001", 50)

	lotRepo := repository.NewLotRepository(integrationDB)
	dispRepo := repository.NewDispensationRepository(integrationDB)

	// 10 workers each try to take 10 units from a lot of 50. Exactly 5 can
	// succeed; the rest must fail without ever driving the quantity negative.
	const workers = 10
	const perWorker = 10

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := integrationDB.Transaction(ctx, func(tx *sqlx.Tx) error {
				if _, err := lotRepo.DecrementQuantity(ctx, tx, lot.ID, perWorker); err != nil {
					return err
				}
				return dispRepo.CreateTx(ctx, tx, &repository.Dispensation{
					LotID:            lot.ID,
					PatientID:        fmt.Sprintf("patient-%d", n),
					Quantity:         perWorker,
					DispensationType: "Receita Comum",
				})
			})
			results <- err
		}(i)
	}

	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case apperrors.Is(err, apperrors.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 5, succeeded, "exactly 5 of 10 workers should win")
	assert.Equal(t, 5, insufficient, "the rest should see insufficient stock")

	// The lot must be exactly drained and the ledger must account for every
	// unit that left it.
	refreshed, err := lotRepo.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, refreshed.CurrentQuantity)

	_, total, err := dispRepo.List(ctx, repository.DispensationFilter{LotID: lot.ID}, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestDispensationRepository_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	med := createIntegrationMedication(t, ctx, "Round Trip Med")
	lot := createIntegrationLot(t, ctx, med.ID, "LOT-RT-001", 100)

	lotRepo := repository.NewLotRepository(integrationDB)
	dispRepo := repository.NewDispensationRepository(integrationDB)

	patientName := "Maria Souza"
	disp := &repository.Dispensation{
		LotID:            lot.ID,
		PatientID:        "patient-rt-1",
		PatientName:      &patientName,
		Quantity:         30,
		DispensationType: "Receita Comum",
	}
	err := integrationDB.Transaction(ctx, func(tx *sqlx.Tx) error {
		remaining, err := lotRepo.DecrementQuantity(ctx, tx, lot.ID, disp.Quantity)
		if err != nil {
			return err
		}
		assert.Equal(t, 70, remaining)
		return dispRepo.CreateTx(ctx, tx, disp)
	})
	require.NoError(t, err)

	rec, err := dispRepo.GetByID(ctx, disp.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.LotNumber, rec.LotNumber)
	assert.Equal(t, med.ID, rec.MedicationID)
	assert.Equal(t, med.Name, rec.MedicationName)
	assert.Equal(t, 30, rec.Quantity)

	recs, total, err := dispRepo.List(ctx, repository.DispensationFilter{PatientID: "patient-rt-1"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, recs, 1)
	assert.Equal(t, disp.ID, recs[0].ID)
}

func TestLotRepository_DecrementFailureRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	med := createIntegrationMedication(t, ctx, "Rollback Med")
	lot := createIntegrationLot(t, ctx, med.ID, "LOT-RB-001", 10)

	lotRepo := repository.NewLotRepository(integrationDB)

	err := integrationDB.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := lotRepo.DecrementQuantity(ctx, tx, lot.ID, 5); err != nil {
			return err
		}
		// Second draw exceeds what is left; the whole transaction must abort.
		_, err := lotRepo.DecrementQuantity(ctx, tx, lot.ID, 6)
		return err
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientStock))

	refreshed, err := lotRepo.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, refreshed.CurrentQuantity, "failed transaction must not touch the quantity")
}
