// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: one file, no server to run. It is the
// default backend for development and single-node deployments, and ":memory:"
// gives every test its own throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed and cross-compilation just works.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	// The named import registers the "sqlite" driver with database/sql as a
	// side effect and gives us its Error type for constraint detection.
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/hospital-directory/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// foldFunc is the SQL name of the Unicode-aware lowercase used by search.
// SQLite's built-in LOWER only folds ASCII, so "Ángeles" would never match
// the pattern repository.LikePattern builds from "ángeles".
const foldFunc = "unicode_lower"

func init() {
	sqlitedrv.MustRegisterDeterministicScalarFunction(foldFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/hospital.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// SINGLE CONNECTION:
// SQLite allows one writer at a time, and an in-memory database exists per
// connection. Capping the pool at one connection makes ":memory:" behave like
// one database and turns writer contention into Go-side queuing instead of
// SQLITE_BUSY errors. Code holding a transaction must therefore never touch
// db.conn directly until it commits.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We need them on for the
	// ON DELETE SET NULL owner/hospital references.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
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

// Ping verifies the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// REFERENCES:
// usuario_id and hospital_id use ON DELETE SET NULL: deleting a user or a
// hospital leaves the dependent rows in place with an empty reference, which
// the API renders as null. "Doctor must have a hospital" is checked by the
// service when a doctor is written, not by the schema.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			nombre           TEXT NOT NULL,
			primer_apellido  TEXT NOT NULL,
			segundo_apellido TEXT NOT NULL DEFAULT '',
			email            TEXT NOT NULL UNIQUE,
			password         TEXT NOT NULL,
			img              TEXT NOT NULL DEFAULT '',
			role             TEXT NOT NULL DEFAULT 'USER_ROLE',
			google           INTEGER NOT NULL DEFAULT 0,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS hospitals (
			id         TEXT PRIMARY KEY,
			nombre     TEXT NOT NULL UNIQUE,
			img        TEXT NOT NULL DEFAULT '',
			usuario_id TEXT REFERENCES users(id) ON DELETE SET NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_hospitals_created_at ON hospitals(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating hospitals table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS doctors (
			id          TEXT PRIMARY KEY,
			nombre      TEXT NOT NULL UNIQUE,
			img         TEXT NOT NULL DEFAULT '',
			usuario_id  TEXT REFERENCES users(id) ON DELETE SET NULL,
			hospital_id TEXT REFERENCES hospitals(id) ON DELETE SET NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_doctors_created_at ON doctors(created_at);
		CREATE INDEX IF NOT EXISTS idx_doctors_hospital_id ON doctors(hospital_id);
	`)
	if err != nil {
		return fmt.Errorf("creating doctors table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// The extended code is checked first; the message check covers drivers that
// only report the primary SQLITE_CONSTRAINT code.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

// nullable maps "" to SQL NULL for optional foreign keys.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
