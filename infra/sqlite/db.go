// Package sqlite implements the engine's stores on SQLite through
// modernc.org/sqlite. Each record is kept as a JSON document next to the few
// columns needed for lookups.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS bookings_status ON bookings (status);
CREATE TABLE IF NOT EXISTS technicians (
    id TEXT PRIMARY KEY,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS teams (
    id TEXT PRIMARY KEY,
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pricing (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    record TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revenue_days (
    date TEXT PRIMARY KEY,
    bucket TEXT NOT NULL,
    aggregate TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revenue_top_products (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    record TEXT NOT NULL
);`

// Open opens or creates the database at path and ensures schema. A single
// connection is used so writers never see SQLITE_BUSY from each other.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return db, nil
}

// inTx runs fn in a transaction, committing on success.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
