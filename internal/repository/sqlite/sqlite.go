// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE FOR A "DOCUMENT" DIRECTORY?
// The directory only ever does equality lookups on indexed identity fields
// and whole-record updates — a key-lookup/update service. An embedded
// database keeps the relay a single self-contained binary: nothing to
// provision, ":memory:" for tests, a single file in production.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite — no CGo, no C
// compiler, painless cross-compilation.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under
	// the name "sqlite" at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements
// repository.AccountRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath (":memory:" for tests) and runs
// migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path or permissions problem
	// surfaces here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — multiple
	// HTTP requests hit this pool at once.
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

// Close closes the connection pool. Always deferred next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. The health endpoint uses this
// to report a degraded (never failing) status.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe
// to run on every startup.
//
// discord_user_id and foursquare_user_id are both UNIQUE: one Discord
// account per record, and a Foursquare ID resolves to at most one account.
// foursquare_user_id is nullable — NULLs don't collide under a UNIQUE
// index, so any number of accounts may be unlinked at once.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id                   TEXT PRIMARY KEY,
			discord_user_id      TEXT NOT NULL UNIQUE,
			discord_username     TEXT NOT NULL,
			discord_display_name TEXT NOT NULL DEFAULT '',
			foursquare_user_id   TEXT UNIQUE,
			connected_at         DATETIME,
			created_at           DATETIME NOT NULL,
			updated_at           DATETIME NOT NULL,
			last_checkin_at      DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_foursquare_user_id
			ON accounts(foursquare_user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}
	return nil
}
