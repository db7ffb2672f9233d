// Package migrations holds the SQL schema migrations for the feed database.
// Files follow the NNNNNN_name.up.sql / NNNNNN_name.down.sql convention.
package migrations

import "embed"

// FS contains every migration file.
//
//go:embed *.sql
var FS embed.FS
