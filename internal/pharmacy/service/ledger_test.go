package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/events"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	apperrors "github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/messaging"
	"github.com/farmatrack/farmatrack-backend/pkg/testutil"
)

type ledgerHarness struct {
	mockDB  *testutil.MockDB
	pub     *testutil.MockPublisher
	service *service.LedgerService
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	mockDB := testutil.NewMockDB(t)
	pub := testutil.NewMockPublisher()
	log := logger.New("test", "test")

	publisher := events.NewPharmacyEventPublisherWithSink(pub, log)
	lotRepo := repository.NewLotRepository(mockDB.DB)
	medRepo := repository.NewMedicationRepository(mockDB.DB)

	svc := service.NewLedgerService(
		lotRepo, medRepo, publisher,
		domain.Thresholds{LowStock: 20, AlertWindowDays: 30}, log,
	)

	return &ledgerHarness{mockDB: mockDB, pub: pub, service: svc}
}

func TestLedgerService_CreateLot(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	medID := uuid.New().String()
	now := time.Now()

	h.mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs(medID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	h.mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	lot, err := h.service.CreateLot(context.Background(), service.CreateLotInput{
		MedicationID:    medID,
		LotNumber:       "LOT-2026-010",
		InitialQuantity: 200,
		ExpiryDate:      now.AddDate(1, 0, 0),
	}, now)
	require.NoError(t, err)

	// A fresh batch opens with its full initial quantity.
	assert.Equal(t, 200, lot.CurrentQuantity)
	assert.Equal(t, lot.InitialQuantity, lot.CurrentQuantity)

	h.pub.AssertEventPublished(t, messaging.EventLotCreated)
	h.mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_CreateLot_ExpiredDateRejected(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	_, err := h.service.CreateLot(context.Background(), service.CreateLotInput{
		MedicationID:    uuid.New().String(),
		LotNumber:       "LOT-OLD",
		InitialQuantity: 10,
		ExpiryDate:      time.Now().AddDate(0, 0, -1),
	}, time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	h.pub.AssertNoEventsPublished(t)
}

func TestLedgerService_CreateLot_ExpiresTodayAccepted(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	medID := uuid.New().String()
	now := time.Now()

	h.mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs(medID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	h.mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))

	_, err := h.service.CreateLot(context.Background(), service.CreateLotInput{
		MedicationID:    medID,
		LotNumber:       "LOT-TODAY",
		InitialQuantity: 10,
		ExpiryDate:      now,
	}, now)
	require.NoError(t, err)

	h.mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_CreateLot_UnknownMedication(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	medID := uuid.New().String()
	h.mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs(medID).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))

	_, err := h.service.CreateLot(context.Background(), service.CreateLotInput{
		MedicationID:    medID,
		LotNumber:       "LOT-NOMED",
		InitialQuantity: 10,
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
	}, time.Now())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	h.pub.AssertNoEventsPublished(t)
	h.mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_GetLot_StatusFollowsAsOf(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	lotID := uuid.New().String()
	medID := uuid.New().String()
	expiry := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	lotRow := func() *sqlmock.Rows {
		return testutil.MockRows(
			"id", "medication_id", "lot_number", "initial_quantity", "current_quantity",
			"manufacture_date", "expiry_date", "note", "created_at", "updated_at",
			"medication_name", "active_ingredient", "prescription_class",
		).AddRow(lotID, medID, "LOT-ASOF", 100, 80, nil, expiry, nil, created, created, "Dipirona", nil, nil)
	}

	h.mockDB.ExpectQuery("FROM lots l").WithArgs(lotID).WillReturnRows(lotRow())
	h.mockDB.ExpectQuery("FROM lots l").WithArgs(lotID).WillReturnRows(lotRow())

	// The same stored row yields a status that depends only on the instant
	// the caller passes in, not on when the call happens to run.
	before, err := h.service.GetLot(context.Background(), lotID, expiry.AddDate(0, -6, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, before.Status)

	after, err := h.service.GetLot(context.Background(), lotID, expiry.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, after.Status)

	h.mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_CreateLot_ExpiryCheckedAgainstAsOf(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	expiry := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	_, err := h.service.CreateLot(context.Background(), service.CreateLotInput{
		MedicationID:    uuid.New().String(),
		LotNumber:       "LOT-ASOF",
		InitialQuantity: 10,
		ExpiryDate:      expiry,
	}, expiry.AddDate(0, 0, 1))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	h.pub.AssertNoEventsPublished(t)
}

func TestLedgerService_ListLots_AttachesStatus(t *testing.T) {
	h := newLedgerHarness(t)
	defer h.mockDB.Close()

	now := time.Now()
	medID := uuid.New().String()
	rows := testutil.MockRows(
		"id", "medication_id", "lot_number", "initial_quantity", "current_quantity",
		"manufacture_date", "expiry_date", "note", "created_at", "updated_at",
		"medication_name", "active_ingredient", "prescription_class",
	).
		AddRow(uuid.New().String(), medID, "LOT-EXP", 100, 10, nil, now.AddDate(0, 0, -5), nil, now, now, "Dipirona", nil, nil).
		AddRow(uuid.New().String(), medID, "LOT-LOW", 100, 10, nil, now.AddDate(1, 0, 0), nil, now, now, "Dipirona", nil, nil).
		AddRow(uuid.New().String(), medID, "LOT-OK", 100, 90, nil, now.AddDate(1, 0, 0), nil, now, now, "Dipirona", nil, nil)

	h.mockDB.ExpectQuery("SELECT COUNT(*)").
		WillReturnRows(testutil.MockRows("count").AddRow(3))
	h.mockDB.ExpectQuery("FROM lots l").
		WillReturnRows(rows)

	lots, total, err := h.service.ListLots(context.Background(), repository.LotFilter{}, "", "", 1, 20, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, lots, 3)

	assert.Equal(t, domain.StatusExpired, lots[0].Status)
	assert.Equal(t, domain.StatusLowStock, lots[1].Status)
	assert.Equal(t, domain.StatusOK, lots[2].Status)

	h.mockDB.ExpectationsWereMet(t)
}
