package handler

import (
	"net/http"
	"time"

	"github.com/farmatrack/farmatrack-backend/internal/pharmacy/service"
	"github.com/farmatrack/farmatrack-backend/pkg/errors"
	"github.com/farmatrack/farmatrack-backend/pkg/httputil"
	"github.com/farmatrack/farmatrack-backend/pkg/logger"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	service *service.AnalyticsService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.AnalyticsService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// Get builds the dashboard snapshot. An optional as_of query param (RFC 3339
// or plain date) pins every derived figure to that instant.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, ok := parseTimeValue(raw)
		if !ok {
			httputil.Error(w, errors.BadRequest("as_of must be an RFC 3339 timestamp or a date"))
			return
		}
		asOf = &t
	}

	snap, err := h.service.GetDashboard(r.Context(), asOf)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, snap)
}

func parseTimeValue(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}
