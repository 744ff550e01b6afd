// Package permissions checks permission strings carried in access tokens.
//
// Permission Format:
//   - "*" - Full access
//   - "resource.*" - All actions on a resource (e.g., "stock.*")
//   - "resource.action" - Specific action (e.g., "stock.read")
//   - "resource.subresource.action" - Nested permission (e.g., "stock.export.writeoff")
package permissions

import (
	"strings"
)

// Stock permissions
const (
	StockRead           = "stock.read"
	StockImportCreate   = "stock.import.create"
	StockExportCreate   = "stock.export.create"
	StockExportWriteOff = "stock.export.writeoff"
	StockBatchStatus    = "stock.batch.status"
	StockAlertsManage   = "stock.alerts.manage"
	StockSweep          = "stock.sweep"
)

// HasPermission checks if the user's permissions include the required permission.
// "*" matches everything and "stock.*" matches every permission below "stock".
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
