// Package migrations holds the Postgres schema for the pgstore backend: the
// licensekit_sessions and licensekit_entitlements tables, one JSONB row per
// account.
package migrations

import (
	"embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var schemaFS embed.FS

// FS exposes the embedded SQL so callers with their own migration runner can
// apply the schema without bun.
var FS = schemaFS

// Migrations is the bun/migrate registry for the pgstore schema.
var Migrations = migrate.NewMigrations()

func init() {
	_ = Migrations.Discover(schemaFS)
}
