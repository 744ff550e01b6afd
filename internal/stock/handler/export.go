package handler

import (
	"net/http"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/restoflow/restoflow-backend/pkg/permissions"
	"github.com/shopspring/decimal"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	exports *service.ExportAllocator
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *service.ExportAllocator, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		exports: exports,
		logger:  log,
	}
}

// Send either batches (manual) or ingredients (automatic FEFO), not both.
type createExportRequest struct {
	Reason          string                    `json:"reason" validate:"required,oneof=usage damaged expired other"`
	ReferenceNumber string                    `json:"reference_number" validate:"max=64"`
	ExportDate      *Date                     `json:"export_date"`
	Notes           *string                   `json:"notes" validate:"omitempty,max=1000"`
	Batches         []exportBatchRequest      `json:"batches"`
	Ingredients     []exportIngredientRequest `json:"ingredients"`
}

type exportBatchRequest struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

type exportIngredientRequest struct {
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// Create records an export
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	reason := domain.ExportReason(req.Reason)
	if reason.IsWriteOff() && !actor.FromContext(r.Context()).Can(permissions.StockExportWriteOff) {
		httputil.Error(w, errors.Forbidden("missing permission "+permissions.StockExportWriteOff))
		return
	}

	b := domain.NewExportRequestBuilder(reason).WithReferenceNumber(req.ReferenceNumber)
	if req.Notes != nil {
		b.WithNotes(*req.Notes)
	}
	if req.ExportDate != nil {
		b.WithExportDate(req.ExportDate.Time)
	}
	for _, l := range req.Batches {
		b.AddBatch(l.BatchID, l.Quantity)
	}
	for _, l := range req.Ingredients {
		b.AddIngredient(l.IngredientID, l.Quantity)
	}

	exportReq, err := b.Build()
	if err != nil {
		httputil.Error(w, err)
		return
	}

	exp, err := h.exports.CreateExport(r.Context(), exportReq)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, exp)
}

// Get gets an export with its items
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	exp, err := h.exports.GetExport(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, exp)
}

// List lists exports
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string)
	q := r.URL.Query()

	filter := domain.ExportFilter{
		Reason: domain.ExportReason(q.Get("reason")),
		Mode:   domain.ExportMode(q.Get("mode")),
		From:   queryDate(r, "from", details),
		To:     queryDate(r, "to", details),
	}
	if filter.Reason != "" && !filter.Reason.Valid() {
		details["reason"] = "must be one of: usage, damaged, expired, other"
	}
	if filter.Mode != "" && filter.Mode != domain.ExportModeManual && filter.Mode != domain.ExportModeAutomatic {
		details["mode"] = "must be one of: manual, automatic"
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	page, perPage := httputil.Pagination(r)
	exports, total, err := h.exports.ListExports(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, exports, httputil.NewMeta(page, perPage, total))
}
