package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/restoflow/restoflow-backend/pkg/errors"
)

// Postgres error codes handled by MapPQError
const (
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return mapUniqueConstraint(pqErr)

	case codeForeignKeyViolation:
		if strings.Contains(pqErr.Constraint, "export_items_batch") {
			return errors.InvalidState("batch is referenced by an export")
		}
		return errors.BadRequest("referenced record does not exist")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case codeSerializationFailure, codeDeadlockDetected:
		return errors.Conflict("concurrent update, please retry")

	default:
		return nil
	}
}

// IsUniqueViolation reports whether err is a unique violation on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeUniqueViolation && strings.Contains(pqErr.Constraint, constraint)
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "remaining_bounds"):
		// A decrement raced past the guard; the caller re-plans.
		return errors.Conflict("batch remaining quantity changed concurrently")

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "unit_price_non_negative"):
		return errors.Validation(map[string]string{
			"unit_price": "must not be negative",
		})

	case strings.Contains(constraint, "dates_ordered"):
		return errors.Validation(map[string]string{
			"expiry_date": "must not be before production_date",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: available, depleted, expired, damaged",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lot_number"):
		return errors.Validation(map[string]string{
			"lot_number": "already exists for this ingredient",
		})
	case strings.Contains(constraint, "reference_number"):
		return errors.DuplicateReference()
	default:
		return errors.Conflict("a record with these values already exists")
	}
}
