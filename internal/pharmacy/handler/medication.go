package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/repository"
	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/httputil"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// MedicationHandler handles medication catalog endpoints
type MedicationHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewMedicationHandler creates a new medication handler
func NewMedicationHandler(svc *service.CatalogService, log *logger.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: svc,
		logger:  log,
	}
}

// List lists catalog entries
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	filter := repository.MedicationFilter{
		NameContains:      r.URL.Query().Get("name"),
		PrescriptionClass: r.URL.Query().Get("prescription_class"),
	}
	sortBy := r.URL.Query().Get("sort_by")
	sortDir := r.URL.Query().Get("sort_dir")

	meds, total, err := h.service.ListMedications(r.Context(), filter, sortBy, sortDir, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, meds, meta(page, perPage, total))
}

// Get gets a medication with its lots
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	med, err := h.service.GetMedication(r.Context(), id, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, med)
}

// Create creates a new catalog entry
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateMedicationInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(input); err != nil {
		httputil.Error(w, err)
		return
	}

	med, err := h.service.CreateMedication(r.Context(), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, med)
}

// Update applies a partial update to a catalog entry
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch repository.MedicationUpdate
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		httputil.Error(w, err)
		return
	}

	med, err := h.service.UpdateMedication(r.Context(), id, patch)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, med)
}

// Delete removes a catalog entry
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteMedication(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// pagination reads page/per_page query params with the usual bounds
func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage
}

func meta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
