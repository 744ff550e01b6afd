package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("invalid token")

	// ErrDuplicateReference is a conflict a retry cannot fix unless the reference is regenerated.
	ErrDuplicateReference = fmt.Errorf("%w: reference number already in use", ErrConflict)
)

// Error codes
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeBadRequest        = "BAD_REQUEST"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidState      = "INVALID_STATE"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenInvalid      = "TOKEN_INVALID"
)

// LineError describes why a single request line was rejected.
// Line is 1-based and refers to the position in the submitted request.
type LineError struct {
	Line         int              `json:"line,omitempty"`
	BatchID      string           `json:"batch_id,omitempty"`
	IngredientID string           `json:"ingredient_id,omitempty"`
	Field        string           `json:"field,omitempty"`
	Message      string           `json:"message"`
	Requested    *decimal.Decimal `json:"requested,omitempty"`
	Available    *decimal.Decimal `json:"available,omitempty"`
}

func (l LineError) String() string {
	var b strings.Builder
	if l.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", l.Line)
	}
	switch {
	case l.BatchID != "":
		fmt.Fprintf(&b, "batch %s: ", l.BatchID)
	case l.IngredientID != "":
		fmt.Fprintf(&b, "ingredient %s: ", l.IngredientID)
	}
	if l.Field != "" {
		fmt.Fprintf(&b, "%s ", l.Field)
	}
	b.WriteString(l.Message)
	if l.Requested != nil && l.Available != nil {
		fmt.Fprintf(&b, " (requested %s, available %s)", l.Requested.String(), l.Available.String())
	}
	return b.String()
}

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
	Lines      []LineError       `json:"lines,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Lines) > 0 {
		parts := make([]string, len(e.Lines))
		for i, l := range e.Lines {
			parts[i] = l.String()
		}
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(parts, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithLines attaches per-line failures, ordered by line number.
func (e *AppError) WithLines(lines []LineError) *AppError {
	sorted := make([]LineError, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line < sorted[j].Line })
	e.Lines = sorted
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       CodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       CodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       CodeBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Conflict signals a lost race against a concurrent writer. Callers may retry.
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// DuplicateReference reports a reference number that another import or export already holds.
func DuplicateReference() *AppError {
	return &AppError{
		Err:        ErrDuplicateReference,
		Code:       CodeConflict,
		Message:    "reference number already in use",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       CodeValidation,
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// ValidationLines reports every rejected line of a multi-line request.
func ValidationLines(lines []LineError) *AppError {
	return (&AppError{
		Err:        ErrValidation,
		Code:       CodeValidation,
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
	}).WithLines(lines)
}

// InsufficientStock reports every line whose requested quantity exceeds what is available.
func InsufficientStock(lines []LineError) *AppError {
	return (&AppError{
		Err:        ErrInsufficientStock,
		Code:       CodeInsufficientStock,
		Message:    "insufficient stock",
		StatusCode: http.StatusUnprocessableEntity,
	}).WithLines(lines)
}

func InvalidState(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidState,
		Code:       CodeInvalidState,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       CodeTokenExpired,
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       CodeTokenInvalid,
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether err is a conflict that a fresh attempt may resolve.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// LinesOf returns the per-line failures carried by err, if any.
func LinesOf(err error) []LineError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Lines
	}
	return nil
}
