// Package sqlite is the SQLite-backed implementation of storage.Store,
// grounded on BeadsLog's internal/storage/sqlite package: same schema/
// migrations split, same single-connection-pool serialization strategy, same
// ncruces/go-sqlite3 driver (cgo-free, so agent binaries cross-compile
// without a C toolchain on the build host).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/doldecomp/agentcoord/internal/debug"
	"github.com/doldecomp/agentcoord/internal/storage"
)

const schemaVersion = "1"

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*txStore)(nil)
)

// Store wraps a *sql.DB constrained to a single connection. A single
// connection turns SQLite's file lock into the writer-serialization
// primitive: every RunInTransaction call acquires BEGIN IMMEDIATE on that
// one connection, so two goroutines in this process never race on it, and
// BEGIN IMMEDIATE blocks (then succeeds) against other OS processes holding
// the SQLite file lock rather than racing them.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if needed) and opens the sqlite database at path, applies
// the schema, records schemaVersion under the meta key schema_version when
// it is absent, and runs pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// A single connection makes BEGIN IMMEDIATE a true serialization point
	// for every writer in this process; see Store doc comment.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enabling WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: applying schema: %w", err)
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: recording schema version: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	debug.Logf("opened sqlite store at %s", path)

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

func (s *Store) UnderlyingDB() *sql.DB { return s.db }

// RunInTransaction begins a write transaction with BEGIN IMMEDIATE (acquires
// the SQLite write lock up front, rather than on first write, so writers
// queue instead of racing into a late "database is locked" error), runs fn
// against a *txStore bound to that transaction, and commits on success.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: enabling foreign keys in transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	t := &txStore{tx: tx}
	if err := fn(t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	committed = true
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read/write
// helper methods in the other files be written once and shared by Store and
// txStore.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// txStore implements storage.Tx against a single *sql.Tx.
type txStore struct {
	tx *sql.Tx
}
