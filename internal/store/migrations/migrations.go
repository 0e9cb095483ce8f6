// Package migrations holds the goose migrations for ledgersync's own
// tables. Synced tables are created on demand by the stores and are not
// managed here.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Dialects with a migration directory in FS.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Up applies all pending migrations for dialect.
func Up(db *sql.DB, dialect string) error {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	// Disable goose's default logging to avoid stdout noise
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(FS)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
