// Package migrations embeds the goose migrations for the session store.
// Each SQL dialect has its own directory inside FS.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Directory names inside FS.
const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
