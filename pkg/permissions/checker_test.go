package permissions

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"full access", []string{"*"}, StockExportWriteOff, true},
		{"exact match", []string{StockRead}, StockRead, true},
		{"resource wildcard", []string{"stock.*"}, StockBatchStatus, true},
		{"nested wildcard", []string{"stock.export.*"}, StockExportWriteOff, true},
		{"nested wildcard does not widen", []string{"stock.export.*"}, StockBatchStatus, false},
		{"prefix is not a wildcard", []string{"stock"}, StockRead, false},
		{"missing", []string{StockRead}, StockImportCreate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPermission(tt.perms, tt.required); got != tt.want {
				t.Errorf("HasPermission(%v, %q) = %v, want %v", tt.perms, tt.required, got, tt.want)
			}
		})
	}
}

func TestHasAnyPermission(t *testing.T) {
	if !HasAnyPermission([]string{StockRead}, []string{StockSweep, StockRead}) {
		t.Error("expected a match on the second permission")
	}
	if HasAnyPermission([]string{StockRead}, []string{StockSweep}) {
		t.Error("expected no match")
	}
}
