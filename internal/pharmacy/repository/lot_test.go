package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	apperrors "github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/testutil"
)

func TestLotRepository_Create(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	medID := uuid.New().String()
	expiry := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mockDB.ExpectQuery("INSERT INTO lots").
		WithArgs(testutil.AnyUUID{}, medID, "LOT-2026-001", 100, 100, nil, expiry, nil).
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	lot := &repository.Lot{
		MedicationID:    medID,
		LotNumber:       "LOT-2026-001",
		InitialQuantity: 100,
		CurrentQuantity: 100,
		ExpiryDate:      expiry,
	}
	err := repo.Create(context.Background(), lot)
	require.NoError(t, err)
	assert.NotEmpty(t, lot.ID)
	assert.False(t, lot.CreatedAt.IsZero())

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_Create_DuplicateLotNumber(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "lots_lot_number_key"})

	lot := &repository.Lot{
		MedicationID:    uuid.New().String(),
		LotNumber:       "LOT-DUP",
		InitialQuantity: 10,
		CurrentQuantity: 10,
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
	}
	err := repo.Create(context.Background(), lot)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, "lot number")

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_DecrementQuantity(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)
	lotID := uuid.New().String()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE lots").
		WithArgs(lotID, 30).
		WillReturnRows(testutil.MockRows("current_quantity").AddRow(70))
	mockDB.ExpectCommit()

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	newQty, err := repo.DecrementQuantity(context.Background(), tx, lotID, 30)
	require.NoError(t, err)
	assert.Equal(t, 70, newQty)

	require.NoError(t, tx.Commit())
	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_DecrementQuantity_InsufficientStock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)
	lotID := uuid.New().String()

	mockDB.ExpectBegin()
	// The conditional update matches no row, then the probe finds the lot
	// with less stock than requested.
	mockDB.ExpectQuery("UPDATE lots").
		WithArgs(lotID, 50).
		WillReturnRows(testutil.MockRows("current_quantity"))
	mockDB.ExpectQuery("SELECT lot_number, current_quantity FROM lots").
		WithArgs(lotID).
		WillReturnRows(testutil.MockRows("lot_number", "current_quantity").AddRow("LOT-0001", 10))
	mockDB.ExpectRollback()

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	_, err = repo.DecrementQuantity(context.Background(), tx, lotID, 50)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())

	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientStock))

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	assert.Equal(t, "10", appErr.Details["available"])
	assert.Equal(t, "LOT-0001", appErr.Details["lot_number"])

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_DecrementQuantity_LotGone(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)
	lotID := uuid.New().String()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("UPDATE lots").
		WithArgs(lotID, 5).
		WillReturnRows(testutil.MockRows("current_quantity"))
	mockDB.ExpectQuery("SELECT lot_number, current_quantity FROM lots").
		WithArgs(lotID).
		WillReturnRows(testutil.MockRows("lot_number", "current_quantity"))
	mockDB.ExpectRollback()

	tx, err := mockDB.DB.Beginx()
	require.NoError(t, err)

	_, err = repo.DecrementQuantity(context.Background(), tx, lotID, 5)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())

	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("FROM lots l").
		WillReturnRows(lotRows())

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_UpdateDetails_QuantityNotReachable(t *testing.T) {
	// An empty patch must not issue an UPDATE at all: the only columns the
	// patch struct can carry are manufacture_date and note.
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)
	lotID := uuid.New().String()
	now := time.Now()

	mockDB.ExpectQuery("FROM lots l").
		WithArgs(lotID).
		WillReturnRows(lotRows().AddRow(
			lotID, uuid.New().String(), "LOT-0002", 100, 40,
			nil, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), nil, now, now,
			"Dipirona 500mg", "Dipirona", "OTC",
		))

	lot, err := repo.UpdateDetails(context.Background(), lotID, repository.LotUpdate{})
	require.NoError(t, err)
	assert.Equal(t, 40, lot.CurrentQuantity)

	mockDB.ExpectationsWereMet(t)
}

func lotRows() *sqlmock.Rows {
	return testutil.MockRows(
		"id", "medication_id", "lot_number", "initial_quantity", "current_quantity",
		"manufacture_date", "expiry_date", "note", "created_at", "updated_at",
		"medication_name", "active_ingredient", "prescription_class",
	)
}
