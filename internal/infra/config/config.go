// Package config loads runtime configuration from the environment, with an optional
// .env file underneath. Every field has a default so the binary runs locally with no
// setup beyond JWT_SECRET for the HTTP server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for toolscope.
type Config struct {
	DBPath       string   // TOOLSCOPE_DB_PATH, default "toolscope.db"
	Host         string   // TOOLSCOPE_HOST, default "0.0.0.0"
	Port         string   // TOOLSCOPE_PORT, default "8080"
	LogLevel     string   // TOOLSCOPE_LOG_LEVEL, default "info"
	LogFormat    string   // TOOLSCOPE_LOG_FORMAT, "json" or "console"
	KeywordsFile string   // TOOLSCOPE_KEYWORDS_FILE, empty means built-in vocabularies
	MCPCommands  []string // TOOLSCOPE_MCP_COMMANDS, comma separated; empty refuses stdio MCP sources
	SourcesRoot  string   // TOOLSCOPE_SOURCES_ROOT, empty refuses file sources over HTTP
}

const (
	EnvDBPath       = "TOOLSCOPE_DB_PATH"
	EnvHost         = "TOOLSCOPE_HOST"
	EnvPort         = "TOOLSCOPE_PORT"
	EnvLogLevel     = "TOOLSCOPE_LOG_LEVEL"
	EnvLogFormat    = "TOOLSCOPE_LOG_FORMAT"
	EnvKeywordsFile = "TOOLSCOPE_KEYWORDS_FILE"
	EnvMCPCommands  = "TOOLSCOPE_MCP_COMMANDS"
	EnvSourcesRoot  = "TOOLSCOPE_SOURCES_ROOT"
)

const (
	DefaultDBPath    = "toolscope.db"
	DefaultHost      = "0.0.0.0"
	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults for missing values.
func Load() Config {
	return Config{
		DBPath:       envOr(EnvDBPath, DefaultDBPath),
		Host:         envOr(EnvHost, DefaultHost),
		Port:         envOr(EnvPort, DefaultPort),
		LogLevel:     envOr(EnvLogLevel, DefaultLogLevel),
		LogFormat:    envOr(EnvLogFormat, DefaultLogFormat),
		KeywordsFile: os.Getenv(EnvKeywordsFile),
		MCPCommands:  splitList(os.Getenv(EnvMCPCommands)),
		SourcesRoot:  os.Getenv(EnvSourcesRoot),
	}
}

// LoadEnvFile exports the variables in path that are not already set. A missing file
// is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// splitList parses a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
