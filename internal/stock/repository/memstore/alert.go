package memstore

import (
	"context"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// AlertStore is the in-memory alert table
type AlertStore struct {
	s *Store
}

func (a *AlertStore) CreateIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error) {
	created := false
	err := a.s.do(ctx, func(st *state) error {
		for _, existing := range st.alerts {
			if existing.IsOpen() && existing.AlertType == alert.AlertType && existing.EntityID == alert.EntityID {
				return nil
			}
		}
		c := *alert
		st.alerts[alert.ID] = &c
		created = true
		return nil
	})
	return created, err
}

func (a *AlertStore) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	var out *domain.Alert
	err := a.s.do(ctx, func(st *state) error {
		found, ok := st.alerts[id]
		if !ok {
			return errors.NotFound("alert")
		}
		c := *found
		out = &c
		return nil
	})
	return out, err
}

func (a *AlertStore) List(ctx context.Context, filter domain.AlertFilter, page, perPage int) ([]*domain.Alert, int64, error) {
	matched := a.selectAlerts(ctx, filter.Matches)
	sortedByCreated(matched, func(x, y *domain.Alert) bool {
		if !x.CreatedAt.Equal(y.CreatedAt) {
			return x.CreatedAt.After(y.CreatedAt)
		}
		return x.ID < y.ID
	})
	return paginate(matched, page, perPage), int64(len(matched)), nil
}

func (a *AlertStore) ListOpen(ctx context.Context, alertType domain.AlertType) ([]*domain.Alert, error) {
	matched := a.selectAlerts(ctx, func(alert *domain.Alert) bool {
		return alert.IsOpen() && alert.AlertType == alertType
	})
	sortedByCreated(matched, func(x, y *domain.Alert) bool { return x.CreatedAt.Before(y.CreatedAt) })
	return matched, nil
}

func (a *AlertStore) Acknowledge(ctx context.Context, id, userID string, at time.Time) error {
	return a.s.do(ctx, func(st *state) error {
		found, ok := st.alerts[id]
		if !ok {
			return errors.NotFound("alert")
		}
		c := *found
		c.IsAcknowledged = true
		c.AcknowledgedBy = &userID
		c.AcknowledgedAt = &at
		st.alerts[id] = &c
		return nil
	})
}

func (a *AlertStore) Resolve(ctx context.Context, id string, at time.Time) error {
	return a.s.do(ctx, func(st *state) error {
		found, ok := st.alerts[id]
		if !ok || !found.IsOpen() {
			return errors.NotFound("open alert")
		}
		c := *found
		c.ResolvedAt = &at
		st.alerts[id] = &c
		return nil
	})
}

func (a *AlertStore) selectAlerts(ctx context.Context, keep func(*domain.Alert) bool) []*domain.Alert {
	matched := []*domain.Alert{}
	_ = a.s.do(ctx, func(st *state) error {
		for _, alert := range st.alerts {
			if keep(alert) {
				c := *alert
				matched = append(matched, &c)
			}
		}
		return nil
	})
	return matched
}
