package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	sqlStore
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Every domain writes from its own goroutine; one connection keeps
	// SQLite from reporting busy.
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{sqlStore{conn: conn}}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type INTEGER NOT NULL,
		adventurer TEXT NOT NULL,
		doer TEXT NOT NULL,
		game_time TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seller TEXT NOT NULL,
		item TEXT NOT NULL,
		price INTEGER NOT NULL,
		ts INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS group_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		leader TEXT NOT NULL,
		continent TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS epic_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type INTEGER NOT NULL,
		group_id INTEGER REFERENCES group_sessions(id),
		ts INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS snapshots (
		kind TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts);
	CREATE INDEX IF NOT EXISTS idx_sales_ts ON sales(ts);
	CREATE INDEX IF NOT EXISTS idx_group_sessions_open ON group_sessions(leader, finished);
	CREATE INDEX IF NOT EXISTS idx_epic_events_name ON epic_events(name);
	`
	_, err := db.conn.Exec(schema)
	return err
}
