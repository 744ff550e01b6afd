package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/restoflow/restoflow-backend/pkg/permissions"
)

// Handlers groups the stock service HTTP handlers
type Handlers struct {
	Imports *ImportHandler
	Exports *ExportHandler
	Batches *BatchHandler
	Stock   *StockHandler
	Alerts  *AlertHandler
}

// RegisterRoutes mounts the stock API on r. Authentication is applied by the caller.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/", h.Imports.List)
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/{id}", h.Imports.Get)
		r.With(httputil.RequirePermission(permissions.StockImportCreate)).Post("/", h.Imports.Create)
	})

	// Write-off reasons additionally need StockExportWriteOff, checked in the handler.
	r.Route("/exports", func(r chi.Router) {
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/", h.Exports.List)
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/{id}", h.Exports.Get)
		r.With(httputil.RequirePermission(permissions.StockExportCreate)).Post("/", h.Exports.Create)
	})

	r.Route("/batches", func(r chi.Router) {
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/", h.Batches.List)
		r.With(httputil.RequirePermission(permissions.StockRead)).Get("/{id}", h.Batches.Get)
		r.With(httputil.RequirePermission(permissions.StockBatchStatus)).Patch("/{id}/status", h.Batches.SetStatus)
	})

	r.Route("/ingredients/{ingredientId}", func(r chi.Router) {
		r.Use(httputil.RequirePermission(permissions.StockRead))
		r.Get("/quantity", h.Stock.Quantity)
		r.Get("/summary", h.Stock.Summary)
	})
	r.With(httputil.RequirePermission(permissions.StockRead)).Get("/low-stock", h.Stock.LowStock)

	r.Route("/alerts", func(r chi.Router) {
		r.With(httputil.RequireAnyPermission(permissions.StockRead, permissions.StockAlertsManage)).Get("/", h.Alerts.List)
		r.With(httputil.RequirePermission(permissions.StockAlertsManage)).Post("/{id}/acknowledge", h.Alerts.Acknowledge)
	})
	r.With(httputil.RequirePermission(permissions.StockSweep)).Post("/sweep", h.Alerts.Sweep)
}
