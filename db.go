// apps/go-server/db.go
//
// Database bootstrap for the darts server.
// Responsibilities:
//   - Opening SQLite with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations before anything else touches the DB.

package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/robalobadob/darts/apps/go-server/internal/store"
)

/**
 * openDatabase opens (creating if missing) the SQLite file at path and
 * brings its schema up to date.
 *
 * - Parent directories are created for relative paths (e.g. ./data/darts.db).
 * - A failed migration closes the handle before returning.
 */
func openDatabase(path string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := store.Migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("database ready")
	return db, nil
}
