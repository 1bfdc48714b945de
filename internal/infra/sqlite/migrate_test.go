package sqlite_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/matiasleandrokruk/toolscope/internal/infra/sqlite"
)

const latestVersion = 5

func TestMigrate_RunsAllMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v; want nil", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("SELECT COUNT(*) FROM schema_migrations error = %v", err)
	}
	if count != latestVersion {
		t.Errorf("schema_migrations rows = %d; want %d", count, latestVersion)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() first run error = %v; want nil", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second run error = %v; want nil", err)
	}
}

func TestMigrate_TablesCreated(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	for _, table := range []string{"workspace", "api_client", "audit_event", "tool_source", "tool_definition", "classification_run"} {
		assertTableExists(t, db, table)
	}
}

func TestMigrate_ForeignKeyConstraintEnforced(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	_, err := db.Exec(`
		INSERT INTO tool_source (id, workspace_id, name, kind, created_at, updated_at)
		VALUES ('src-1', 'nonexistent-workspace', 'jira', 'mcp', datetime('now'), datetime('now'))
	`)
	if err == nil {
		t.Error("INSERT with non-existent workspace_id succeeded; want FK constraint error")
	}
}

func TestMigrate_WorkspaceSlugUnique(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")

	_, err := db.Exec(`
		INSERT INTO workspace (id, name, slug, created_at, updated_at)
		VALUES ('ws-2', 'Workspace Two', 'slug-ws-1', datetime('now'), datetime('now'))
	`)
	if err == nil {
		t.Error("duplicate slug INSERT succeeded; want UNIQUE constraint error")
	}
}

func TestMigrate_SourceKindEnum(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")

	_, err := db.Exec(`
		INSERT INTO tool_source (id, workspace_id, name, kind, created_at, updated_at)
		VALUES ('src-1', 'ws-1', 'jira', 'grpc', datetime('now'), datetime('now'))
	`)
	if err == nil {
		t.Error("tool_source kind 'grpc' accepted; want CHECK constraint error")
	}
}

func TestMigrate_AmbiguousCategoryAccepted(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")

	for i, category := range []string{"search", "action", "ambiguous"} {
		_, err := db.Exec(`
			INSERT INTO tool_definition (id, workspace_id, name, category, created_at, updated_at)
			VALUES (?, 'ws-1', ?, ?, datetime('now'), datetime('now'))
		`, category, "tool_"+category, category)
		if err != nil {
			t.Fatalf("insert #%d category %q: %v", i, category, err)
		}
	}

	_, err := db.Exec(`
		INSERT INTO tool_definition (id, workspace_id, name, category, created_at, updated_at)
		VALUES ('bad', 'ws-1', 'bad_tool', 'destructive', datetime('now'), datetime('now'))
	`)
	if err == nil {
		t.Error("category 'destructive' accepted; want CHECK constraint error")
	}
}

func TestMigrate_DeleteSourceCascadesToDefinitions(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")
	insertSourceWithTool(t, db, "ws-1", "src-1", "tool-1")
	mustExec(t, db, `
		INSERT INTO classification_run (id, workspace_id, source_id, trigger, input_count, output_count, excluded_count, created_at)
		VALUES ('run-1', 'ws-1', 'src-1', 'sync', 2, 1, 1, datetime('now'))
	`)

	mustExec(t, db, `DELETE FROM tool_source WHERE id = 'src-1'`)

	if n := countRows(t, db, "SELECT COUNT(*) FROM tool_definition WHERE source_id = 'src-1'"); n != 0 {
		t.Errorf("tool_definition rows after source delete = %d; want 0", n)
	}

	var sourceID sql.NullString
	if err := db.QueryRow("SELECT source_id FROM classification_run WHERE id = 'run-1'").Scan(&sourceID); err != nil {
		t.Fatalf("select run: %v", err)
	}
	if sourceID.Valid {
		t.Errorf("classification_run.source_id = %q; want NULL after source delete", sourceID.String)
	}
}

func TestMigrate_DeleteWorkspaceCascades(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")
	insertSourceWithTool(t, db, "ws-1", "src-1", "tool-1")
	mustExec(t, db, `
		INSERT INTO api_client (id, workspace_id, name, secret_hash, created_at)
		VALUES ('client-1', 'ws-1', 'ci', 'hash', datetime('now'))
	`)

	mustExec(t, db, `DELETE FROM workspace WHERE id = 'ws-1'`)

	for _, table := range []string{"tool_source", "tool_definition", "api_client"} {
		if n := countRows(t, db, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Errorf("%s rows after workspace delete = %d; want 0", table, n)
		}
	}
}

func TestMigrate_RebuildKeepsExistingRows(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	insertWorkspace(t, db, "ws-1")
	insertSourceWithTool(t, db, "ws-1", "src-1", "tool-1")

	// Step back over the cascade rebuild and forward again; data must survive both ways.
	if err := sqlite.MigrateDown(db, 1); err != nil {
		t.Fatalf("MigrateDown(1) error = %v", err)
	}
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() after down error = %v", err)
	}

	if n := countRows(t, db, "SELECT COUNT(*) FROM tool_definition"); n != 1 {
		t.Errorf("tool_definition rows = %d; want 1", n)
	}
	if n := countRows(t, db, "SELECT COUNT(*) FROM tool_source"); n != 1 {
		t.Errorf("tool_source rows = %d; want 1", n)
	}
}

func TestMigrateDown_AmbiguousFoldsIntoAction(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)
	insertWorkspace(t, db, "ws-1")
	mustExec(t, db, `
		INSERT INTO tool_definition (id, workspace_id, name, category, created_at, updated_at)
		VALUES ('t-1', 'ws-1', 'ping', 'ambiguous', datetime('now'), datetime('now'))
	`)

	if err := sqlite.MigrateDown(db, 3); err != nil {
		t.Fatalf("MigrateDown(3) error = %v", err)
	}

	var category string
	if err := db.QueryRow("SELECT category FROM tool_definition WHERE id = 't-1'").Scan(&category); err != nil {
		t.Fatalf("select category: %v", err)
	}
	if category != "action" {
		t.Errorf("category after rollback = %q; want %q", category, "action")
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("MigrationVersion() = %d; want 2", version)
	}
}

func TestMigrateDown_All(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	if err := sqlite.MigrateDown(db, 0); err != nil {
		t.Fatalf("MigrateDown(0) error = %v", err)
	}

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0", version)
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='workspace'").Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("workspace table still present after full rollback (err=%v)", err)
	}
}

func TestMigrate_Version(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v; want nil", err)
	}
	if version != latestVersion {
		t.Errorf("MigrationVersion() = %d; want %d", version, latestVersion)
	}
}

func TestMigrate_OnlyAppliesPending(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	countBefore := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations")
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() second error = %v", err)
	}
	countAfter := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations")

	if countAfter != countBefore {
		t.Errorf("schema_migrations count changed from %d to %d; want unchanged", countBefore, countAfter)
	}
}

func TestPendingMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	pending, err := sqlite.PendingMigrations(db)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != latestVersion {
		t.Fatalf("pending on fresh DB = %v; want %d entries", pending, latestVersion)
	}
	if pending[0] != "001_init_schema.up.sql" {
		t.Errorf("first pending = %q; want 001_init_schema.up.sql", pending[0])
	}

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	pending, err = sqlite.PendingMigrations(db)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after MigrateUp = %v; want none", pending)
	}
}

func TestMigrationVersion_NoMigrations(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)

	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("MigrationVersion() = %d; want 0 on fresh DB", version)
	}
}

func TestMigrate_ForeignKeysRestoredAfterRebuild(t *testing.T) {
	t.Parallel()

	db := mustMigrate(t)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("foreign_keys = %d after migrations; want 1", fkEnabled)
	}
}

// --- helpers ---

func mustMigrate(t *testing.T) *sql.DB {
	t.Helper()
	db := mustOpenDB(t)
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func insertWorkspace(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	mustExec(t, db, `
		INSERT INTO workspace (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, datetime('now'), datetime('now'))
	`, id, "Workspace "+id, "slug-"+id)
}

func insertSourceWithTool(t *testing.T, db *sql.DB, workspaceID, sourceID, toolID string) {
	t.Helper()
	mustExec(t, db, `
		INSERT INTO tool_source (id, workspace_id, name, kind, created_at, updated_at)
		VALUES (?, ?, ?, 'mcp', datetime('now'), datetime('now'))
	`, sourceID, workspaceID, "source-"+sourceID)
	mustExec(t, db, `
		INSERT INTO tool_definition (id, workspace_id, source_id, name, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'List repositories', 'search', datetime('now'), datetime('now'))
	`, toolID, workspaceID, sourceID, "list_repos_"+toolID)
}

// assertTableExists fails the test if the given table doesn't exist in the DB.
func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&name)

	if err == sql.ErrNoRows {
		t.Errorf("table %q not found in sqlite_master after MigrateUp", tableName)
		return
	}
	if err != nil {
		t.Fatalf("assertTableExists(%q) query error = %v", tableName, err)
	}
}
