// Package migrations embeds the goose SQL migrations applied at startup.
package migrations

import "embed"

// Files holds the SQL migration files, ordered by their numeric prefix.
//
//go:embed *.sql
var Files embed.FS
