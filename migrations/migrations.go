// Package migrations embeds the stock-service schema migrations.
package migrations

import "embed"

// FS holds the numbered golang-migrate SQL files
//
//go:embed *.sql
var FS embed.FS
