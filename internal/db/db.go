// Package db provides SQLite persistence for crack-tip runs and their
// per-step tip history.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL connection pool.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the database at path and ensures
// the baseline schema exists. Deployments that manage schema through
// the migrate subcommand get the same tables from migrations/; the
// inline DDL keeps ad-hoc and test databases working without them.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(baselineSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// OpenDB opens the database without touching the schema. Used by the
// migrate subcommand, which manages schema itself.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	return &DB{db}, nil
}

const baselineSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		label         TEXT NOT NULL DEFAULT '',
		field_name    TEXT NOT NULL DEFAULT 'd',
		threshold     DOUBLE NOT NULL DEFAULT 0.5,
		ref_x         DOUBLE NOT NULL DEFAULT 0,
		ref_y         DOUBLE NOT NULL DEFAULT 0,
		ref_z         DOUBLE NOT NULL DEFAULT 0,
		region_min_x  DOUBLE,
		region_min_y  DOUBLE,
		region_min_z  DOUBLE,
		region_max_x  DOUBLE,
		region_max_y  DOUBLE,
		region_max_z  DOUBLE,
		created_unix  DOUBLE NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tip_history (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id        TEXT NOT NULL,
		step          BIGINT NOT NULL,
		scanned_unix  DOUBLE NOT NULL,
		tip_x         DOUBLE NOT NULL,
		tip_y         DOUBLE NOT NULL,
		tip_z         DOUBLE NOT NULL,
		distance_sq   DOUBLE NOT NULL,
		found         BOOLEAN NOT NULL,
		candidates    BIGINT NOT NULL DEFAULT 0,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE INDEX IF NOT EXISTS idx_tip_history_run_step
		ON tip_history(run_id, step);
`
