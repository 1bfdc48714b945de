// Migration runner for the toolscope SQLite schema.
// SQL files are embedded into the binary; applied versions are tracked in schema_migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// migrations embeds every up and down script from the migrations directory.
//
//go:embed migrations/*.sql
var migrations embed.FS

// foreignKeysOffDirective marks scripts that rebuild tables. They run with
// foreign key enforcement disabled and are verified with foreign_key_check
// before commit.
const foreignKeysOffDirective = "-- migrate:foreign-keys-off"

var (
	// ErrIrreversibleMigration is returned by MigrateDown when an applied version has no down script.
	ErrIrreversibleMigration = errors.New("migration has no down script")
	// ErrForeignKeyViolation is returned when a table rebuild leaves dangling references.
	ErrForeignKeyViolation = errors.New("foreign key check failed")
)

// MigrateUp applies all pending *.up.sql migrations in order.
// Already-applied migrations are skipped, so calling it repeatedly is safe.
// Each migration runs in its own transaction.
func MigrateUp(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	files, err := loadMigrationFiles(".up.sql")
	if err != nil {
		return fmt.Errorf("migrate: load files: %w", err)
	}

	for _, f := range files {
		applied, checkErr := isMigrationApplied(db, f.version)
		if checkErr != nil {
			return fmt.Errorf("migrate: check applied %d: %w", f.version, checkErr)
		}
		if applied {
			continue
		}

		if applyErr := runMigration(db, f, func(tx *sql.Tx) error {
			_, execErr := tx.Exec(
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				f.version, f.name,
			)
			return execErr
		}); applyErr != nil {
			return fmt.Errorf("migrate: apply %s: %w", f.name, applyErr)
		}
	}

	return nil
}

// MigrateDown rolls back the newest steps applied migrations, newest first.
// steps <= 0 rolls back everything.
func MigrateDown(db *sql.DB, steps int) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("migrate: list applied: %w", err)
	}
	if steps > 0 && steps < len(applied) {
		applied = applied[:steps]
	}

	downs, err := loadMigrationFiles(".down.sql")
	if err != nil {
		return fmt.Errorf("migrate: load files: %w", err)
	}
	byVersion := make(map[int]migrationFile, len(downs))
	for _, f := range downs {
		byVersion[f.version] = f
	}

	for _, version := range applied {
		f, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("migrate: roll back %d: %w", version, ErrIrreversibleMigration)
		}
		if rollbackErr := runMigration(db, f, func(tx *sql.Tx) error {
			_, execErr := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version)
			return execErr
		}); rollbackErr != nil {
			return fmt.Errorf("migrate: roll back %s: %w", f.name, rollbackErr)
		}
	}

	return nil
}

// MigrationVersion returns the highest migration version number currently applied.
// Returns 0 if no migrations have been applied yet.
func MigrationVersion(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	var version int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}

	return version, nil
}

// PendingMigrations lists the embedded up migrations that have not been applied.
func PendingMigrations(db *sql.DB) ([]string, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}
	files, err := loadMigrationFiles(".up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrate: load files: %w", err)
	}

	pending := make([]string, 0, len(files))
	for _, f := range files {
		applied, checkErr := isMigrationApplied(db, f.version)
		if checkErr != nil {
			return nil, fmt.Errorf("migrate: check applied %d: %w", f.version, checkErr)
		}
		if !applied {
			pending = append(pending, f.name)
		}
	}
	return pending, nil
}

// --- internal ---

// migrationFile holds a parsed migration file ready to apply.
type migrationFile struct {
	name    string // e.g. "002_tool_catalog.up.sql"
	version int
	sql     string
}

func (f migrationFile) foreignKeysOff() bool {
	return strings.HasPrefix(strings.TrimSpace(f.sql), foreignKeysOffDirective)
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// loadMigrationFiles reads the embedded files with the given suffix, sorted by name.
func loadMigrationFiles(suffix string) ([]migrationFile, error) {
	var files []migrationFile

	err := fs.WalkDir(migrations, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, suffix) {
			return nil
		}

		content, err := migrations.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		name := d.Name()
		version := versionFromFilename(name)
		if version == 0 {
			return fmt.Errorf("read %s: missing numeric version prefix", path)
		}
		files = append(files, migrationFile{name: name, version: version, sql: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Lexicographic order equals numeric order for zero-padded prefixes.
	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})

	return files, nil
}

// versionFromFilename extracts the numeric version prefix from a migration filename.
// "001_init_schema.up.sql" → 1
// "005_cascade_deletes.down.sql" → 5
func versionFromFilename(name string) int {
	var version int
	if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
		return 0
	}
	return version
}

func isMigrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// appliedVersions returns applied versions, newest first.
func appliedVersions(db *sql.DB) ([]int, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if scanErr := rows.Scan(&v); scanErr != nil {
			return nil, scanErr
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// runMigration executes one script plus its bookkeeping statement in a transaction.
// PRAGMA foreign_keys is a no-op inside a transaction, so scripts carrying the
// directive pin a single connection and toggle it around the transaction.
func runMigration(db *sql.DB, f migrationFile, record func(*sql.Tx) error) error {
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	fkOff := f.foreignKeysOff()
	if fkOff {
		if _, pragmaErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); pragmaErr != nil {
			return fmt.Errorf("disable foreign keys: %w", pragmaErr)
		}
		defer func() {
			_, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON") //nolint:errcheck // best effort restore
		}()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, execErr := tx.Exec(f.sql); execErr != nil {
		return fmt.Errorf("exec SQL: %w", execErr)
	}

	if fkOff {
		if checkErr := checkForeignKeys(tx); checkErr != nil {
			return checkErr
		}
	}

	if recordErr := record(tx); recordErr != nil {
		return fmt.Errorf("record migration: %w", recordErr)
	}

	return tx.Commit()
}

func checkForeignKeys(tx *sql.Tx) error {
	rows, err := tx.Query("PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var (
			table  string
			rowID  sql.NullInt64
			parent string
			fkID   int
		)
		if scanErr := rows.Scan(&table, &rowID, &parent, &fkID); scanErr != nil {
			return fmt.Errorf("foreign key check: %w", scanErr)
		}
		return fmt.Errorf("%w: %s row %d references missing %s", ErrForeignKeyViolation, table, rowID.Int64, parent)
	}
	return rows.Err()
}
