// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE FOR A CACHE?
// The upstream leaderboard only offers paginated bulk listing, so the whole point
// of this service is a local copy that supports single-record lookup. SQLite is an
// embedded database — it lives inside the Go binary as a single file. No separate
// database server to install, configure, or manage, and the cache survives restarts
// (which the sync cursor requires).
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// SCHEMA:
// Three tables mirror the three key families of the cache:
//   - participants: id → serialized snapshot JSON (the record store)
//   - slugs:        "name#discriminator" → participant id (the name index)
//   - cursor:       "sync:page" / "sync:rank" → integer (the sync cursor)
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import `_ "modernc.org/sqlite"` is a "side-effect only" import.
	// It doesn't give us any symbols to use directly. Instead, the sqlite package's
	// init() function registers itself with database/sql as a driver named "sqlite".
	// After this import, sql.Open("sqlite", ...) knows how to talk to SQLite.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
//
// *DB implements both repository.ParticipantStore and repository.SyncCursor —
// they are two views of the same database, and batch writes to records and the
// name index must share one transaction.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/levelboard.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	// "sqlite" is the driver name registered by the blank import above.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping verifies the connection actually works.
	// Without this, a bad path or permissions issue would only surface
	// on the first query — which is much harder to debug.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes.
	// WAL mode allows concurrent reads WHILE a write is happening.
	// Critical here: the sync loop writes whole pages while lookup
	// requests read concurrently.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables and seeds the sync cursor.
//
// CREATE TABLE IF NOT EXISTS is idempotent — safe on every startup.
// The cursor rows are seeded with INSERT OR IGNORE, which is the SQLite
// equivalent of "set if not exists": a restart keeps the surviving cursor
// (the sync loop resumes where it left off), a fresh database starts at
// page 0, rank 1.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS participants (
			id         INTEGER PRIMARY KEY,
			snapshot   TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating participants table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS slugs (
			slug           TEXT PRIMARY KEY,
			participant_id INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating slugs table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS cursor (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating cursor table: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT OR IGNORE INTO cursor (name, value) VALUES ('sync:page', 0), ('sync:rank', 1);
	`)
	if err != nil {
		return fmt.Errorf("seeding cursor: %w", err)
	}

	return nil
}
