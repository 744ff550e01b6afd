package service

import (
	"context"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/actor"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// AlertService exposes stored alerts to operators
type AlertService struct {
	stores Stores
	clock  Clock
}

// NewAlertService creates a new alert service
func NewAlertService(stores Stores, clock Clock) *AlertService {
	return &AlertService{stores: stores, clock: clock}
}

// ListAlerts lists alerts newest first
func (s *AlertService) ListAlerts(ctx context.Context, filter domain.AlertFilter, page, perPage int) ([]*domain.Alert, int64, error) {
	if filter.AlertType != "" && filter.AlertType != domain.AlertTypeLowStock && filter.AlertType != domain.AlertTypeExpiringSoon {
		return nil, 0, errors.Validation(map[string]string{"type": "must be one of: low_stock, expiring_soon"})
	}
	return s.stores.Alerts.List(ctx, filter, page, perPage)
}

// Acknowledge marks an alert as seen by the acting user. Acknowledging twice is a no-op.
func (s *AlertService) Acknowledge(ctx context.Context, id string) (*domain.Alert, error) {
	alert, err := s.stores.Alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.IsAcknowledged {
		return alert, nil
	}

	if err := s.stores.Alerts.Acknowledge(ctx, id, actor.IDFromContext(ctx), s.clock.Now()); err != nil {
		return nil, err
	}
	return s.stores.Alerts.GetByID(ctx, id)
}
