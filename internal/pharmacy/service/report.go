package service

import (
	"context"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/domain"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/report"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// ReportService assembles the periodic inventory report
type ReportService struct {
	reportRepo *repository.ReportRepository
	renderer   *report.Renderer
	thresholds domain.Thresholds
	logger     *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(
	reportRepo *repository.ReportRepository,
	renderer *report.Renderer,
	thresholds domain.Thresholds,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		renderer:   renderer,
		thresholds: thresholds,
		logger:     log,
	}
}

// Build assembles the report for [from, to]. The period bounds are treated
// as whole days: from starts at midnight, to runs to end of day.
func (s *ReportService) Build(ctx context.Context, from, to time.Time) (*repository.InventoryReport, error) {
	if to.Before(from) {
		return nil, errors.Validation(map[string]string{
			"period": "end date must not precede start date",
		})
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 999999999, to.Location())

	rep, err := s.reportRepo.Build(ctx, start, end, time.Now())
	if err != nil {
		return nil, err
	}

	for _, lot := range rep.Stock {
		lot.Status = domain.LotStatus(lot.ExpiryDate, lot.CurrentQuantity, rep.GeneratedAt, s.thresholds)
	}

	return rep, nil
}

// BuildPDF assembles the report and renders it as a PDF document
func (s *ReportService) BuildPDF(ctx context.Context, from, to time.Time) ([]byte, error) {
	rep, err := s.Build(ctx, from, to)
	if err != nil {
		return nil, err
	}

	pdfBytes, err := s.renderer.Render(rep)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Time("from", rep.From).
		Time("to", rep.To).
		Int("history_rows", len(rep.History)).
		Int("stock_rows", len(rep.Stock)).
		Msg("inventory report rendered")

	return pdfBytes, nil
}
