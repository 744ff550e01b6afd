package domain

import (
	"strings"
	"time"

	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// ExportRequest is a validated, immutable export request.
// Exactly one of Lines (manual mode) or Requests (automatic mode) is non-empty.
type ExportRequest struct {
	mode            ExportMode
	reason          ExportReason
	notes           *string
	referenceNumber string
	exportDate      *time.Time
	lines           []ExportLine
	requests        []IngredientRequest
}

func (r *ExportRequest) Mode() ExportMode        { return r.mode }
func (r *ExportRequest) Reason() ExportReason    { return r.reason }
func (r *ExportRequest) ReferenceNumber() string { return r.referenceNumber }

func (r *ExportRequest) Notes() *string {
	if r.notes == nil {
		return nil
	}
	n := *r.notes
	return &n
}

func (r *ExportRequest) ExportDate() *time.Time {
	if r.exportDate == nil {
		return nil
	}
	d := *r.exportDate
	return &d
}

// Lines returns a copy of the manual-mode lines
func (r *ExportRequest) Lines() []ExportLine {
	return append([]ExportLine(nil), r.lines...)
}

// Requests returns a copy of the automatic-mode ingredient requests
func (r *ExportRequest) Requests() []IngredientRequest {
	return append([]IngredientRequest(nil), r.requests...)
}

// ExportRequestBuilder accumulates an export one batch or ingredient at a time
// and validates the whole request on Build.
type ExportRequestBuilder struct {
	reason          ExportReason
	notes           *string
	referenceNumber string
	exportDate      *time.Time
	lines           []ExportLine
	requests        []IngredientRequest
}

// NewExportRequestBuilder starts an export with the given reason
func NewExportRequestBuilder(reason ExportReason) *ExportRequestBuilder {
	return &ExportRequestBuilder{reason: reason}
}

// AddBatch appends a manual-mode line
func (b *ExportRequestBuilder) AddBatch(batchID string, quantity decimal.Decimal) *ExportRequestBuilder {
	b.lines = append(b.lines, ExportLine{BatchID: batchID, Quantity: quantity})
	return b
}

// SetBatchQuantity replaces the quantity of an existing line for batchID, or appends one.
// A zero quantity removes the line.
func (b *ExportRequestBuilder) SetBatchQuantity(batchID string, quantity decimal.Decimal) *ExportRequestBuilder {
	for i, l := range b.lines {
		if l.BatchID != batchID {
			continue
		}
		if quantity.IsZero() {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
		} else {
			b.lines[i].Quantity = quantity
		}
		return b
	}
	if !quantity.IsZero() {
		b.lines = append(b.lines, ExportLine{BatchID: batchID, Quantity: quantity})
	}
	return b
}

// AddIngredient appends an automatic-mode request
func (b *ExportRequestBuilder) AddIngredient(ingredientID string, quantity decimal.Decimal) *ExportRequestBuilder {
	b.requests = append(b.requests, IngredientRequest{IngredientID: ingredientID, Quantity: quantity})
	return b
}

func (b *ExportRequestBuilder) WithNotes(notes string) *ExportRequestBuilder {
	if strings.TrimSpace(notes) == "" {
		b.notes = nil
		return b
	}
	b.notes = &notes
	return b
}

func (b *ExportRequestBuilder) WithReferenceNumber(ref string) *ExportRequestBuilder {
	b.referenceNumber = strings.TrimSpace(ref)
	return b
}

func (b *ExportRequestBuilder) WithExportDate(date time.Time) *ExportRequestBuilder {
	b.exportDate = &date
	return b
}

// Build validates the accumulated request. Every problem is reported, not only the first.
func (b *ExportRequestBuilder) Build() (*ExportRequest, error) {
	details := make(map[string]string)
	var lineErrs []errors.LineError

	if !b.reason.Valid() {
		details["reason"] = "must be one of: usage, damaged, expired, other"
	}

	mode := ExportModeManual
	switch {
	case len(b.lines) == 0 && len(b.requests) == 0:
		details["lines"] = "at least one line is required"
	case len(b.lines) > 0 && len(b.requests) > 0:
		details["lines"] = "batch lines and ingredient requests cannot be mixed"
	case len(b.requests) > 0:
		mode = ExportModeAutomatic
		if b.reason.IsWriteOff() {
			details["reason"] = "automatic allocation only debits available stock; use usage or other"
		}
	}

	for i, l := range b.lines {
		if strings.TrimSpace(l.BatchID) == "" {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, Field: "batch_id", Message: "is required"})
		}
		if !l.Quantity.IsPositive() {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, BatchID: l.BatchID, Field: "quantity", Message: "must be greater than zero"})
		} else if msg := ScaleProblem(l.Quantity); msg != "" {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, BatchID: l.BatchID, Field: "quantity", Message: msg})
		}
	}

	for i, r := range b.requests {
		if strings.TrimSpace(r.IngredientID) == "" {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, Field: "ingredient_id", Message: "is required"})
		}
		if !r.Quantity.IsPositive() {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, IngredientID: r.IngredientID, Field: "quantity", Message: "must be greater than zero"})
		} else if msg := ScaleProblem(r.Quantity); msg != "" {
			lineErrs = append(lineErrs, errors.LineError{Line: i + 1, IngredientID: r.IngredientID, Field: "quantity", Message: msg})
		}
	}

	if len(details) > 0 || len(lineErrs) > 0 {
		appErr := errors.ValidationLines(lineErrs)
		if len(details) > 0 {
			appErr.Details = details
		}
		return nil, appErr
	}

	req := &ExportRequest{
		mode:            mode,
		reason:          b.reason,
		referenceNumber: b.referenceNumber,
		lines:           append([]ExportLine(nil), b.lines...),
		requests:        append([]IngredientRequest(nil), b.requests...),
	}
	if b.notes != nil {
		n := *b.notes
		req.notes = &n
	}
	if b.exportDate != nil {
		d := *b.exportDate
		req.exportDate = &d
	}
	return req, nil
}
