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
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
	"github.com/farmatrack/farmatrack-backend/pkg/testutil"
)

func newAnalyticsService(mockDB *testutil.MockDB) *service.AnalyticsService {
	log := logger.New("test", "test")
	repo := repository.NewAnalyticsRepository(mockDB.DB)
	return service.NewAnalyticsService(repo, domain.Thresholds{LowStock: 20, AlertWindowDays: 30}, log)
}

func dashboardLotRows() *sqlmock.Rows {
	return testutil.MockRows(
		"id", "medication_id", "lot_number", "initial_quantity", "current_quantity",
		"manufacture_date", "expiry_date", "note", "created_at", "updated_at",
		"medication_name", "active_ingredient", "prescription_class",
	)
}

func TestAnalyticsService_GetDashboard_TableStatuses(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	svc := newAnalyticsService(mockDB)
	asOf := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	medID := uuid.New().String()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("total_medications").
		WillReturnRows(testutil.MockRows(
			"total_medications", "total_lots", "total_units",
			"low_stock_lots", "near_expiry_lots", "dispensations_this_month",
		).AddRow(5, 9, 800, 2, 1, 6))
	// The ranking and both alert tables are capped at five rows each.
	mockDB.ExpectQuery("SUM(d.quantity) AS total_dispensed").
		WithArgs(5).
		WillReturnRows(testutil.MockRows("medication_id", "medication_name", "total_dispensed").
			AddRow(medID, "Dipirona 500mg", 120))
	mockDB.ExpectQuery("EXTRACT(MONTH FROM dispensed_at)").
		WillReturnRows(testutil.MockRows("month", "count").AddRow(4, 6))
	mockDB.ExpectQuery("l.expiry_date <=").
		WithArgs(asOf.AddDate(0, 0, 30), 5).
		WillReturnRows(dashboardLotRows().AddRow(
			uuid.New().String(), medID, "LOT-GONE", 100, 60,
			nil, asOf.AddDate(0, 0, -3), nil, created, created,
			"Dipirona 500mg", nil, nil,
		))
	mockDB.ExpectQuery("l.current_quantity <").
		WithArgs(20, 5).
		WillReturnRows(dashboardLotRows().AddRow(
			uuid.New().String(), medID, "LOT-LOW-GONE", 100, 4,
			nil, asOf.AddDate(0, 0, -3), nil, created, created,
			"Dipirona 500mg", nil, nil,
		))
	mockDB.ExpectCommit()

	snap, err := svc.GetDashboard(context.Background(), &asOf)
	require.NoError(t, err)

	// Near-expiry rows show the usual status, so a lot past its date reads
	// as expired there.
	require.Len(t, snap.NearExpiry, 1)
	assert.Equal(t, domain.StatusExpired, snap.NearExpiry[0].Status)

	// Low-stock rows are labelled by stock level even when the same lot is
	// already past its expiry date.
	require.Len(t, snap.LowStock, 1)
	assert.Equal(t, domain.StatusLowStock, snap.LowStock[0].Status)

	mockDB.ExpectationsWereMet(t)
}
