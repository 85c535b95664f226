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

// LotHandler handles lot ledger endpoints
type LotHandler struct {
	service *service.LedgerService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.LedgerService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: svc,
		logger:  log,
	}
}

// List lists lots with their derived status
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.LotFilter{
		LotNumberContains:      r.URL.Query().Get("lot_number"),
		MedicationNameContains: r.URL.Query().Get("medication"),
	}
	sortBy := r.URL.Query().Get("sort_by")
	sortDir := r.URL.Query().Get("sort_dir")

	lots, total, err := h.service.ListLots(r.Context(), filter, sortBy, sortDir, page, perPage, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, lots, meta(page, perPage, total))
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lot, err := h.service.GetLot(r.Context(), id, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// GetByNumber gets a lot by its printed lot number
func (h *LotHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	lotNumber := chi.URLParam(r, "lotNumber")

	lot, err := h.service.GetLotByNumber(r.Context(), lotNumber, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// ListByMedication lists every lot of one medication
func (h *LotHandler) ListByMedication(w http.ResponseWriter, r *http.Request) {
	medicationID := chi.URLParam(r, "id")

	lots, err := h.service.ListByMedication(r.Context(), medicationID, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// Create receives a new batch into stock
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateLotInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.CreateLot(r.Context(), input, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// Update applies a partial update to a lot's descriptive fields
func (h *LotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch repository.LotUpdate
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.UpdateLot(r.Context(), id, patch, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}
