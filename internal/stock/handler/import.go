package handler

import (
	"net/http"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// ImportHandler handles import endpoints
type ImportHandler struct {
	imports *service.ImportProcessor
	logger  *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(imports *service.ImportProcessor, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		imports: imports,
		logger:  log,
	}
}

// Line contents are checked by the import processor so that every failing line is reported together.
type createImportRequest struct {
	SupplierID      string              `json:"supplier_id" validate:"required,uuid"`
	ReferenceNumber string              `json:"reference_number" validate:"max=64"`
	ImportDate      *Date               `json:"import_date"`
	Note            *string             `json:"note" validate:"omitempty,max=1000"`
	Lines           []importLineRequest `json:"lines" validate:"required,min=1"`
}

type importLineRequest struct {
	IngredientID   string          `json:"ingredient_id"`
	LotNumber      *string         `json:"lot_number"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ProductionDate *Date           `json:"production_date"`
	ExpiryDate     *Date           `json:"expiry_date"`
}

// Create receives a delivery
func (h *ImportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]domain.ImportLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.ImportLine{
			IngredientID:   l.IngredientID,
			LotNumber:      l.LotNumber,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			ProductionDate: l.ProductionDate.Ptr(),
			ExpiryDate:     l.ExpiryDate.Ptr(),
		}
	}

	imp, err := h.imports.CreateImport(r.Context(), domain.ImportRequest{
		SupplierID:      req.SupplierID,
		ReferenceNumber: req.ReferenceNumber,
		ImportDate:      req.ImportDate.Ptr(),
		Note:            req.Note,
		Lines:           lines,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, imp)
}

// Get gets an import with its batches
func (h *ImportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	imp, err := h.imports.GetImport(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, imp)
}

// List lists imports
func (h *ImportHandler) List(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string)
	filter := domain.ImportFilter{
		SupplierID: queryUUID(r, "supplier_id", details),
		From:       queryDate(r, "from", details),
		To:         queryDate(r, "to", details),
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	page, perPage := httputil.Pagination(r)
	imports, total, err := h.imports.ListImports(r.Context(), filter, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, imports, httputil.NewMeta(page, perPage, total))
}
