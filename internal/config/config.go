// Package config loads the settings of the preference tools from PREFS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/dshills/typedprefs/internal/logging"
)

// Prefix is the environment variable prefix.
const Prefix = "PREFS"

// Backend selects the store implementation.
type Backend string

// Supported backends.
const (
	BackendMemory Backend = "memory"
	BackendTOML   Backend = "toml"
	BackendYAML   Backend = "yaml"
	BackendSQLite Backend = "sqlite"
)

// Backends lists the supported backends.
var Backends = []Backend{BackendMemory, BackendTOML, BackendYAML, BackendSQLite}

// ErrInvalidConfig indicates a setting outside its allowed values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tool configuration.
type Config struct {
	// Backend is one of memory, toml, yaml or sqlite.
	Backend Backend `default:"toml"`
	// Path is the preference file, or the database file for sqlite. Empty
	// selects a file under the user configuration directory.
	Path string
	// Namespace names the preference set. File backends derive it from
	// the file name when Path is set.
	Namespace string `default:"preferences"`

	LogLevel string `split_words:"true" default:"warn"`
	LogDev   bool   `split_words:"true" default:"false"`

	// WatchDebounce is the quiet period before a file change is reported.
	WatchDebounce time.Duration `split_words:"true" default:"100ms"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		Backend:       BackendTOML,
		Namespace:     "preferences",
		LogLevel:      "warn",
		WatchDebounce: 100 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace is empty", ErrInvalidConfig)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("%w: negative watch debounce %s", ErrInvalidConfig, c.WatchDebounce)
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if c.LogDev {
		cfg = logging.DevelopmentConfig()
	}
	if c.LogLevel != "" {
		cfg.Level = c.LogLevel
	}
	return cfg
}

// StorePath returns Path, or the default location of the backend's file
// under the user configuration directory.
func (c *Config) StorePath() (string, error) {
	if c.Path != "" {
		return c.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	dir = filepath.Join(dir, "typedprefs")

	switch c.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "preferences.db"), nil
	case BackendYAML:
		return filepath.Join(dir, c.Namespace+".yaml"), nil
	default:
		return filepath.Join(dir, c.Namespace+".toml"), nil
	}
}
