// Package sqlite opens the toolscope catalog database and applies its schema migrations.
// It uses modernc.org/sqlite, a pure-Go driver, so the binary needs no CGO.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	// Register the modernc sqlite driver under the name "sqlite"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"cache_size(-64000)", // 64MB page cache (negative = KB)
	"temp_store(MEMORY)",
}

// NewDB opens (or creates) a SQLite database at path with WAL, enforced foreign keys
// and a busy timeout. The parent directory must already exist.
//
// Each connection to ":memory:" is its own database, so the pool is pinned to a
// single connection for that path.
func NewDB(path string) (*sql.DB, error) {
	inMemory := path == MemoryPath
	if !inMemory {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil, fmt.Errorf("sqlite.NewDB: parent directory %q does not exist", dir)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.NewDB: open %q: %w", path, err)
	}

	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		// WAL allows concurrent readers; SQLite serializes writers itself.
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.NewDB: ping %q: %w", path, err)
	}

	return db, nil
}

// Open is NewDB followed by MigrateUp, logging the resulting schema version.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %q: %w", path, err)
	}
	version, err := MigrationVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Str("path", path).Int("schema_version", version).Msg("database ready")
	return db, nil
}

func dsn(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}
