package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/matiasleandrokruk/toolscope/pkg/auth"
)

var ErrEnvFileExists = errors.New("env file already exists")

// EnvDefaults is the variable set written by InitEnvFile, minus the JWT secret.
func EnvDefaults() map[string]string {
	return map[string]string{
		EnvDBPath:         DefaultDBPath,
		EnvHost:           DefaultHost,
		EnvPort:           DefaultPort,
		EnvLogLevel:       DefaultLogLevel,
		EnvLogFormat:      DefaultLogFormat,
		auth.EnvJWTExpiry: strconv.Itoa(auth.DefaultJWTExpiry),
	}
}

// InitEnvFile writes a .env with the defaults, any overrides, and jwtSecret. An
// existing file is left alone unless force is set; with force, its values are kept
// except for overrides and the secret.
func InitEnvFile(path, jwtSecret string, overrides map[string]string, force bool) error {
	vars := EnvDefaults()

	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%w: %s", ErrEnvFileExists, path)
		}
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read existing env file: %w", err)
		}
		for k, v := range existing {
			vars[k] = v
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat env file: %w", err)
	}

	for k, v := range overrides {
		vars[k] = v
	}
	vars[auth.EnvJWTSecret] = jwtSecret

	if err := godotenv.Write(vars, path); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return os.Chmod(path, 0o600)
}
