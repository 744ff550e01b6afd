package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/restoflow/restoflow-backend/internal/stock/domain"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

const alertColumns = `id, alert_type, entity_id, ingredient_id, batch_id, message, current_quantity, threshold,
	expiry_date, days_until_expiry, is_acknowledged, acknowledged_by, acknowledged_at, resolved_at, created_at`

// AlertRepository handles stock alert persistence
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// CreateIfAbsent inserts the alert unless an unresolved one exists for the same type and entity.
// It reports whether a row was written.
func (r *AlertRepository) CreateIfAbsent(ctx context.Context, alert *domain.Alert) (bool, error) {
	query := `
		INSERT INTO stock_alerts (
			id, alert_type, entity_id, ingredient_id, batch_id, message, current_quantity,
			threshold, expiry_date, days_until_expiry, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (alert_type, entity_id) WHERE resolved_at IS NULL DO NOTHING
		RETURNING id
	`

	var id string
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		alert.ID, alert.AlertType, alert.EntityID, alert.IngredientID, alert.BatchID, alert.Message,
		alert.CurrentQuantity, alert.Threshold, alert.ExpiryDate, alert.DaysUntilExpiry, alert.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// GetByID gets an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	var alert domain.Alert
	query := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &alert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("alert")
		}
		return nil, err
	}
	return &alert, nil
}

// List lists alerts with filtering, newest first
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter, page, perPage int) ([]*domain.Alert, int64, error) {
	var conditions []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.AlertType != "" {
		add("alert_type = $%d", string(filter.AlertType))
	}
	if filter.Acknowledged != nil {
		add("is_acknowledged = $%d", *filter.Acknowledged)
	}
	if !filter.IncludeResolved {
		conditions = append(conditions, "resolved_at IS NULL")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Conn(ctx).GetContext(ctx, &total, `SELECT COUNT(*) FROM stock_alerts`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + alertColumns + ` FROM stock_alerts` + where +
		` ORDER BY created_at DESC, id` +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	alerts := []*domain.Alert{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// ListOpen lists unresolved alerts of one type
func (r *AlertRepository) ListOpen(ctx context.Context, alertType domain.AlertType) ([]*domain.Alert, error) {
	alerts := []*domain.Alert{}
	query := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE alert_type = $1 AND resolved_at IS NULL ORDER BY created_at`
	if err := r.db.Conn(ctx).SelectContext(ctx, &alerts, query, alertType); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge acknowledges an alert
func (r *AlertRepository) Acknowledge(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE stock_alerts
		SET is_acknowledged = true, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("alert")
	}
	return nil
}

// Resolve closes an alert so the condition can be raised again later
func (r *AlertRepository) Resolve(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE stock_alerts SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("open alert")
	}
	return nil
}
