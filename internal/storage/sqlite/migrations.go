package sqlite

import (
	"database/sql"
	"fmt"
)

// Migration is a single idempotent schema change applied after the base
// schema. BeadsLog accumulates dozens of these as its schema evolves release
// to release; this store starts from schemaVersion 1 with none yet, but the
// list and runner exist so future columns don't need a new execution path.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

var migrationsList = []Migration{}

// RunMigrations executes all registered migrations under a single EXCLUSIVE
// transaction, serializing schema changes across concurrently-starting
// processes the same way BeadsLog's RunMigrations does: two processes
// racing a check-then-ALTER against the same database can otherwise both
// observe the pre-migration schema and both attempt the same ALTER,
// producing a duplicate column error.
func RunMigrations(db *sql.DB) error {
	if len(migrationsList) == 0 {
		return nil
	}

	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true

	return nil
}
