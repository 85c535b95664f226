package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/httputil"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// ReportHandler handles inventory report endpoints
type ReportHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the report data as JSON
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rep, err := h.service.Build(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rep)
}

// GetPDF renders the report as a downloadable PDF
func (h *ReportHandler) GetPDF(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.period(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	pdfBytes, err := h.service.BuildPDF(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := fmt.Sprintf("inventory-report-%s-%s.pdf",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

func (h *ReportHandler) period(r *http.Request) (time.Time, time.Time, error) {
	from, okFrom := parseTimeValue(r.URL.Query().Get("from"))
	to, okTo := parseTimeValue(r.URL.Query().Get("to"))
	if !okFrom || !okTo {
		return time.Time{}, time.Time{}, errors.BadRequest("from and to dates are required (YYYY-MM-DD)")
	}
	return from, to, nil
}
