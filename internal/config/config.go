// Package config loads and validates dirkv configuration.
//
// Configuration comes from a YAML file (".dirkv.yaml" next to the database
// by default), overridden by DIRKV_* environment variables. Index options
// here apply at database creation; after that the @INDEXLIST control record
// is authoritative.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-database configuration file name.
const ConfigFileName = ".dirkv.yaml"

// Config is the complete dirkv configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string `yaml:"path" json:"path"`

	// Backend selects the storage engine: "bolt" (default, single file,
	// pure Go) or "sqlite" (WAL mode).
	Backend string `yaml:"backend" json:"backend"`

	// ReadOnly opens the database without write access.
	ReadOnly bool `yaml:"read_only" json:"read_only"`
}

// IndexConfig carries the index engine options. GUIDAttr, GUIDDNComponent,
// OneLevel and Attributes seed the @INDEXLIST control record at init; the
// rest are process-wide.
type IndexConfig struct {
	// GUIDAttr names the attribute carrying the 16-byte entry GUID.
	// Empty selects DN identifier mode. Fixed for the database lifetime.
	GUIDAttr string `yaml:"guid_attr" json:"guid_attr"`

	// GUIDDNComponent names the extended DN component carrying the GUID.
	GUIDDNComponent string `yaml:"guid_dn_component" json:"guid_dn_component"`

	// OneLevel maintains the parent->children index.
	OneLevel bool `yaml:"one_level" json:"one_level"`

	// Attributes lists the equality-indexed attribute names.
	Attributes []string `yaml:"attributes" json:"attributes"`

	// UniqueAttributes lists attributes with a uniqueness constraint.
	UniqueAttributes []string `yaml:"unique_attributes" json:"unique_attributes"`

	// MaxKeyLength caps storage key length; 0 means unlimited.
	MaxKeyLength int `yaml:"max_key_length" json:"max_key_length"`

	// DisallowDNFilter rejects (dn=...) equality filters.
	DisallowDNFilter bool `yaml:"disallow_dn_filter" json:"disallow_dn_filter"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Path:    "dirkv.db",
			Backend: "bolt",
		},
		Index: IndexConfig{
			OneLevel: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load reads configuration for the database in dir: defaults, then the
// YAML file if present, then environment overrides.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dir, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies DIRKV_* environment variables on top of the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DIRKV_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DIRKV_DB_BACKEND"); v != "" {
		c.Database.Backend = v
	}
	if v := os.Getenv("DIRKV_READ_ONLY"); v != "" {
		c.Database.ReadOnly = parseBool(v)
	}
	if v := os.Getenv("DIRKV_GUID_ATTR"); v != "" {
		c.Index.GUIDAttr = v
	}
	if v := os.Getenv("DIRKV_MAX_KEY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.MaxKeyLength = n
		}
	}
	if v := os.Getenv("DIRKV_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "", "bolt", "sqlite":
	default:
		return fmt.Errorf("config: unknown backend %q (want bolt or sqlite)", c.Database.Backend)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database path is required")
	}
	if c.Index.MaxKeyLength < 0 {
		return fmt.Errorf("config: max_key_length must be >= 0")
	}
	// A usable key needs room for the wrapper, the prefix, separators and
	// at least one byte of attribute and value.
	if c.Index.MaxKeyLength > 0 && c.Index.MaxKeyLength < 16 {
		return fmt.Errorf("config: max_key_length %d is too small to fit any index key", c.Index.MaxKeyLength)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
