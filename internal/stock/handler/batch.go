package handler

import (
	"net/http"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

// BatchHandler handles batch ledger endpoints
type BatchHandler struct {
	ledger *service.Ledger
	logger *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(ledger *service.Ledger, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		ledger: ledger,
		logger: log,
	}
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available depleted expired damaged"`
}

// List lists batches
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string)
	filter := domain.BatchFilter{
		IngredientID:       queryUUID(r, "ingredient_id", details),
		SupplierID:         queryUUID(r, "supplier_id", details),
		ImportID:           queryUUID(r, "import_id", details),
		ExpiringWithinDays: queryInt(r, "expiring_within_days", details),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.BatchStatus(raw)
		if !status.Valid() {
			details["status"] = "must be one of: available, depleted, expired, damaged"
		} else {
			filter.Status = &status
		}
	}
	if filter.ExpiringWithinDays != nil && *filter.ExpiringWithinDays < 0 {
		details["expiring_within_days"] = "must not be negative"
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	page, perPage := httputil.Pagination(r)
	batches, total, err := h.ledger.GetBatches(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, batches, httputil.NewMeta(page, perPage, total))
}

// Get gets a batch
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// SetStatus moves a batch to a new status
func (h *BatchHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req setStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.SetStatus(r.Context(), id, domain.BatchStatus(req.Status))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}
