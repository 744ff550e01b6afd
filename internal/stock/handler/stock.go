package handler

import (
	"net/http"

	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// StockHandler handles per-ingredient stock views
type StockHandler struct {
	aggregator *service.Aggregator
	logger     *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(aggregator *service.Aggregator, log *logger.Logger) *StockHandler {
	return &StockHandler{
		aggregator: aggregator,
		logger:     log,
	}
}

type quantityResponse struct {
	IngredientID    string          `json:"ingredient_id"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
}

// Quantity returns the current quantity of an ingredient
func (h *StockHandler) Quantity(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "ingredientId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	qty, err := h.aggregator.GetCurrentQuantity(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, quantityResponse{IngredientID: id, CurrentQuantity: qty})
}

// Summary returns the stock summary of an ingredient
func (h *StockHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "ingredientId")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	summary, err := h.aggregator.GetStockSummary(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// LowStock lists ingredients below their threshold
func (h *StockHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.aggregator.GetLowStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}
