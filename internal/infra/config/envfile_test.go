package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/matiasleandrokruk/toolscope/pkg/auth"
)

func TestInitEnvFile_WritesDefaultsAndSecret(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	if err := InitEnvFile(path, "s3cret", map[string]string{EnvPort: "9090"}, false); err != nil {
		t.Fatalf("InitEnvFile returned error: %v", err)
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("godotenv.Read: %v", err)
	}
	if vars[auth.EnvJWTSecret] != "s3cret" {
		t.Errorf("JWT secret = %q", vars[auth.EnvJWTSecret])
	}
	if vars[EnvPort] != "9090" {
		t.Errorf("port override = %q", vars[EnvPort])
	}
	if vars[EnvDBPath] != DefaultDBPath || vars[auth.EnvJWTExpiry] != "24" {
		t.Errorf("defaults missing: %v", vars)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v; want 0600", info.Mode().Perm())
	}
}

func TestInitEnvFile_RefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KEEP=1\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := InitEnvFile(path, "s3cret", nil, false); !errors.Is(err, ErrEnvFileExists) {
		t.Fatalf("expected ErrEnvFileExists, got %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "KEEP=1\n" {
		t.Fatalf("file was modified: %q", raw)
	}
}

func TestInitEnvFile_ForceKeepsExistingValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	existing := "KEEP=1\n" + EnvLogLevel + "=debug\n" + auth.EnvJWTSecret + "=old\n"
	if err := os.WriteFile(path, []byte(existing), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := InitEnvFile(path, "new", map[string]string{EnvHost: "127.0.0.1"}, true); err != nil {
		t.Fatalf("InitEnvFile returned error: %v", err)
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("godotenv.Read: %v", err)
	}
	if vars["KEEP"] != "1" || vars[EnvLogLevel] != "debug" {
		t.Errorf("existing values lost: %v", vars)
	}
	if vars[EnvHost] != "127.0.0.1" || vars[auth.EnvJWTSecret] != "new" {
		t.Errorf("overrides not applied: %v", vars)
	}
}
