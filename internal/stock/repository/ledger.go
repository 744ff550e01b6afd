package repository

import (
	"github.com/restoflow/restoflow-backend/internal/stock/service"
	"github.com/restoflow/restoflow-backend/pkg/database"
)

// NewStores wires the Postgres repositories into the stores the stock services use
func NewStores(db *database.DB) service.Stores {
	return service.Stores{
		Tx:      db,
		Batches: NewBatchRepository(db),
		Imports: NewImportRepository(db),
		Exports: NewExportRepository(db),
		Alerts:  NewAlertRepository(db),
		Catalog: NewCatalogRepository(db),
	}
}
