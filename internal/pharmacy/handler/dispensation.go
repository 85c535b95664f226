package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/httputil"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// DispensationHandler handles dispensation endpoints
type DispensationHandler struct {
	service *service.DispensationService
	logger  *logger.Logger
}

// NewDispensationHandler creates a new dispensation handler
func NewDispensationHandler(svc *service.DispensationService, log *logger.Logger) *DispensationHandler {
	return &DispensationHandler{
		service: svc,
		logger:  log,
	}
}

// Register registers a new dispensation
func (h *DispensationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterDispensationInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	record, err := h.service.Register(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, record)
}

// Get gets a dispensation by ID
func (h *DispensationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.service.GetDispensation(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, record)
}

// List lists dispensations newest first
func (h *DispensationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.DispensationFilter{
		LotID:        r.URL.Query().Get("lot_id"),
		MedicationID: r.URL.Query().Get("medication_id"),
		PatientID:    r.URL.Query().Get("patient_id"),
	}

	if from, ok := parseTimeParam(r, "from"); ok {
		filter.From = &from
	}
	if to, ok := parseTimeParam(r, "to"); ok {
		filter.To = &to
	}

	records, total, err := h.service.ListDispensations(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, records, meta(page, perPage, total))
}

// parseTimeParam reads an RFC 3339 timestamp or a plain date query param
func parseTimeParam(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
