package service

import (
	"context"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// AnalyticsService computes dashboard aggregates
type AnalyticsService struct {
	analyticsRepo *repository.AnalyticsRepository
	thresholds    domain.Thresholds
	logger        *logger.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	analyticsRepo *repository.AnalyticsRepository,
	thresholds domain.Thresholds,
	log *logger.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		thresholds:    thresholds,
		logger:        log,
	}
}

// The dashboard shows the five most consumed medications and the five most
// urgent lots in each alert table.
const (
	topConsumedLimit = 5
	alertTableLimit  = 5
)

// GetDashboard builds the dashboard snapshot. A nil asOf means "now"; any
// other value reproduces the dashboard as it would have looked at that
// instant, because every derived figure is computed against it.
func (s *AnalyticsService) GetDashboard(ctx context.Context, asOf *time.Time) (*repository.DashboardSnapshot, error) {
	at := time.Now()
	if asOf != nil {
		at = *asOf
	}

	snap, err := s.analyticsRepo.Snapshot(ctx, at, s.thresholds.LowStock, s.thresholds.AlertWindowDays, topConsumedLimit, alertTableLimit)
	if err != nil {
		return nil, err
	}

	for _, lot := range snap.NearExpiry {
		lot.Status = domain.LotStatus(lot.ExpiryDate, lot.CurrentQuantity, at, s.thresholds)
	}
	// The low-stock table is labelled by its own axis. A lot listed there is
	// low on stock whatever its expiry says, so the row keeps the stock label.
	for _, lot := range snap.LowStock {
		lot.Status = domain.StatusLowStock
	}

	return snap, nil
}
