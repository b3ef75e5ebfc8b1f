// Package store keeps training schedules in SQLite. The schema mirrors the
// back office: a schedules table plus one range row for regular schedules or
// one row per date for staggered schedules.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLDB is the subset of *sql.DB used by the store.
type SQLDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	course TEXT NOT NULL,
	branch TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'planned',
	schedule_type TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schedule_ranges (
	schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schedule_dates (
	schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
	date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedule_ranges_schedule ON schedule_ranges(schedule_id);
CREATE INDEX IF NOT EXISTS idx_schedule_dates_schedule ON schedule_dates(schedule_id);
`

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which is plenty for a back-office calendar.
	db.SetMaxOpenConns(1)

	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitDB enables WAL and foreign keys and creates the tables.
func InitDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}
