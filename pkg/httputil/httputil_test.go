package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/restoflow/restoflow-backend/pkg/errors"
	"github.com/restoflow/restoflow-backend/pkg/httputil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineInput struct {
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

type createInput struct {
	SupplierID string      `json:"supplier_id" validate:"required,uuid"`
	Reason     string      `json:"reason" validate:"omitempty,oneof=usage other"`
	Lines      []lineInput `json:"lines" validate:"required,min=1,dive"`
}

func TestValidate(t *testing.T) {
	err := httputil.Validate(&createInput{
		SupplierID: "nope",
		Reason:     "lost",
		Lines:      []lineInput{{Quantity: decimal.NewFromInt(1)}, {Quantity: decimal.Zero}},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.CodeValidation, appErr.Code)
	assert.Equal(t, "must be a valid UUID", appErr.Details["supplier_id"])
	assert.Equal(t, "must be one of: usage other", appErr.Details["reason"])
	assert.Equal(t, "must be greater than 0", appErr.Details["lines[1].quantity"])
	assert.NotContains(t, appErr.Details, "lines[0].quantity")

	assert.NoError(t, httputil.Validate(&createInput{
		SupplierID: "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d7c6b",
		Lines:      []lineInput{{Quantity: decimal.RequireFromString("0.25")}},
	}))
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var in createInput
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"supplier_id":"x","color":"red"}`))
	err := httputil.DecodeJSON(req, &in)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query       string
		page, limit int
	}{
		{"", 1, 50},
		{"page=3&per_page=20", 3, 20},
		{"page=-1&per_page=1000", 1, 50},
	}
	for _, tt := range tests {
		page, perPage := httputil.Pagination(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, perPage, tt.query)
	}
}

func TestError_LinesAreOrdered(t *testing.T) {
	rec := httptest.NewRecorder()
	httputil.Error(rec, errors.InsufficientStock([]errors.LineError{
		{Line: 3, IngredientID: "b", Message: "not enough stock"},
		{Line: 1, IngredientID: "a", Message: "not enough stock"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"line":1`), strings.Index(body, `"line":3`))
}

func TestNewMeta(t *testing.T) {
	meta := httputil.NewMeta(2, 20, 41)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, int64(41), meta.Total)
}
