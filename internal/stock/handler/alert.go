package handler

import (
	"net/http"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

// AlertHandler handles stock alert endpoints
type AlertHandler struct {
	alerts    *service.AlertService
	scheduler *service.SweepScheduler
	logger    *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts *service.AlertService, scheduler *service.SweepScheduler, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:    alerts,
		scheduler: scheduler,
		logger:    log,
	}
}

// List lists alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string)
	filter := domain.AlertFilter{
		AlertType:    domain.AlertType(r.URL.Query().Get("type")),
		Acknowledged: queryBool(r, "acknowledged", details),
	}
	if resolved := queryBool(r, "include_resolved", details); resolved != nil {
		filter.IncludeResolved = *resolved
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	page, perPage := httputil.Pagination(r)
	alerts, total, err := h.alerts.ListAlerts(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, httputil.NewMeta(page, perPage, total))
}

// Acknowledge marks an alert as seen
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.alerts.Acknowledge(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Sweep runs one expiry and low stock sweep now
func (h *AlertHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Int("reclassified", len(result.Reclassified)).
		Msg("Manual sweep completed")

	httputil.JSON(w, http.StatusOK, result)
}
