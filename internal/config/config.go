// Package config loads keytrigger settings from a TOML, YAML or JSON file,
// an optional .env file and KEYTRIGGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KEYTRIGGER_"

// Config is the full keytrigger configuration.
type Config struct {
	Store       StoreConfig       `toml:"store" json:"store" yaml:"store"`
	Log         LogConfig         `toml:"log" json:"log" yaml:"log"`
	Output      OutputConfig      `toml:"output" json:"output" yaml:"output"`
	Environment EnvironmentConfig `toml:"environment" json:"environment" yaml:"environment"`
	Editor      EditorConfig      `toml:"editor" json:"editor" yaml:"editor"`
}

// StoreConfig locates the key-map library.
type StoreConfig struct {
	// Path is the sqlite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LogConfig controls the default slog logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`
}

// OutputConfig controls CLI output.
type OutputConfig struct {
	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`
}

// EnvironmentConfig points at the environment snapshot used by classify
// when none is given on the command line.
type EnvironmentConfig struct {
	Snapshot string `toml:"snapshot" json:"snapshot" yaml:"snapshot"`
}

// EditorConfig tunes the editor.
type EditorConfig struct {
	// QueueHint preallocates the pending edit queue.
	QueueHint int `toml:"queue_hint" json:"queue_hint" yaml:"queue_hint"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(DataDir(), "library.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format: "text",
		},
		Editor: EditorConfig{
			QueueHint: 16,
		},
	}
}

// DataDir returns the keytrigger data directory. KEYTRIGGER_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if dir := os.Getenv(EnvPrefix + "DATA_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "keytrigger")
	}
	return ".keytrigger"
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(DataDir(), "config.toml")
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies KEYTRIGGER_* environment variables. Malformed
// numbers are left for Validate to report.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvPrefix + "STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv(EnvPrefix + "ENV_SNAPSHOT"); v != "" {
		c.Environment.Snapshot = v
	}
	if v := os.Getenv(EnvPrefix + "QUEUE_HINT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sQUEUE_HINT: %w", EnvPrefix, err)
		}
		c.Editor.QueueHint = n
	}
	return nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. A .env file beside it is loaded first so its
// variables take part in the overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}
