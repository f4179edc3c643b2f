// Package config loads application configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML config file,
// RECALL_-prefixed environment variables, command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds the application settings.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path" validate:"required"`

	// ListenAddr is the web UI bind address.
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`

	// ReposDir is where git card sources are mirrored.
	ReposDir string `koanf:"repos_dir" validate:"required"`

	// User is the owner of cards and sessions in this single-user
	// deployment.
	User string `koanf:"user" validate:"required"`

	// SessionLimit caps the number of cards per review session.
	// Zero means unlimited.
	SessionLimit int `koanf:"session_limit" validate:"min=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:       "recall.db",
		ListenAddr:   "127.0.0.1:8484",
		ReposDir:     "repos",
		User:         "local",
		SessionLimit: 0,
	}
}

// Load builds the configuration from the file at path (optional; ignored if
// absent), the environment, and the given flag set (may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// RECALL_DB_PATH -> db_path
	envProvider := env.Provider("RECALL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RECALL_"))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
