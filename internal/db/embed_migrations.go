package db

import "embed"

// MigrationFS holds the meters and events schema, applied by cmd/migrate and by the collector
// when MIGRATE_ON_START is set.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
