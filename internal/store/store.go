package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (ledger, users)
// 1 - Added indexes on ledger.source and ledger.destination
const currentSchemaVersion = 1

// Store is the persistent ledger. Uses SQLite through a single connection.
type Store struct {
	db   *sql.DB
	path string
}

// StoreOpenError reports a failure to open or prepare the store. It is
// fatal at startup and is not retried.
type StoreOpenError struct {
	Path string
	Op   string
	Err  error
}

func (e *StoreOpenError) Error() string {
	return fmt.Sprintf("open store %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *StoreOpenError) Unwrap() error {
	return e.Err
}

// ErrCipherUnavailable is returned when key material is supplied but the
// linked SQLite has no cipher, so the file would be written in plaintext.
var ErrCipherUnavailable = errors.New("sqlite build has no cipher support (PRAGMA cipher_version is empty)")

// keyError marks ConnectHook failures caused by key material.
type keyError struct {
	err error
}

func (e *keyError) Error() string { return e.err.Error() }
func (e *keyError) Unwrap() error { return e.err }

// connector opens go-sqlite3 connections for a fixed DSN so the driver's
// ConnectHook applies to every connection the pool creates.
type connector struct {
	driver *sqlite3.SQLiteDriver
	dsn    string
}

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

// Open creates or opens the store at path and applies key material, pragmas
// and the schema. A nil or empty key opens the file unkeyed.
//
// The database is configured with:
//   - WAL mode for durability with a single writer
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - Foreign key enforcement
//
// Safe to call on an existing store: schema creation is idempotent.
func Open(path string, key []byte) (*Store, error) {
	drv := &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if len(key) > 0 {
				if err := applyKey(conn, key); err != nil {
					return &keyError{err: err}
				}
			}
			return applyPragmas(conn)
		},
	}

	db := sql.OpenDB(&connector{driver: drv, dsn: path + "?_txlock=immediate"})

	// SQLite only supports one writer at a time; one connection also keeps
	// the trusted read path on the same handle as the worker.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		op := "connect"
		var ke *keyError
		if errors.As(err, &ke) {
			op = "key"
		}
		return nil, &StoreOpenError{Path: path, Op: op, Err: err}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, &StoreOpenError{Path: path, Op: "schema", Err: err}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// applyKey hands the raw key to the cipher layer, refuses to continue
// without one, and forces a read so a wrong key fails here rather than on
// the first command.
func applyKey(conn *sqlite3.SQLiteConn, key []byte) error {
	// Hex only: the key bytes never reach the statement text.
	pragma := fmt.Sprintf(`PRAGMA key = "x'%s'"`, hex.EncodeToString(key))
	if _, err := conn.Exec(pragma, nil); err != nil {
		return fmt.Errorf("apply key: %w", err)
	}

	// Stock SQLite treats PRAGMA key as an unknown pragma and ignores it.
	version, err := cipherVersion(conn)
	if err != nil {
		return fmt.Errorf("check cipher: %w", err)
	}
	if version == "" {
		return ErrCipherUnavailable
	}

	if _, err := conn.Exec("SELECT count(*) FROM sqlite_master", nil); err != nil {
		return fmt.Errorf("verify key: %w", err)
	}
	return nil
}

// cipherVersion returns the SQLCipher version, or "" on a build without it.
func cipherVersion(conn *sqlite3.SQLiteConn) (string, error) {
	rows, err := conn.Query("PRAGMA cipher_version", nil)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	dest := make([]driver.Value, len(rows.Columns()))
	if len(dest) == 0 {
		return "", nil
	}
	if err := rows.Next(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
	switch v := dest[0].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", nil
	}
}

// applyPragmas sets required SQLite configuration on a new connection.
func applyPragmas(conn *sqlite3.SQLiteConn) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create ledger and users tables: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes the columns used by the rows-by-user read path.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ledger_source ON ledger(source);
		CREATE INDEX IF NOT EXISTS idx_ledger_destination ON ledger(destination);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
