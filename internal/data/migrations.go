package data

import (
	"context"
	"database/sql"

	"github.com/automaton-hq/automaton/internal/migrate"
)

// RunMigrations brings the schema up to date. Exposed here so callers of the
// data layer never import the migrate package directly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
