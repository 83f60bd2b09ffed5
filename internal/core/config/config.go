// Package config handles configuration loading and validation for kvpub.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable with store.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Bolt      BoltConfig      `yaml:"bolt"`
	Memory    MemoryConfig    `yaml:"memory"`
	Limits    LimitsConfig    `yaml:"limits"`
	Retention RetentionConfig `yaml:"retention"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite or bolt
}

// DatabaseConfig configures the SQLite backend.
type DatabaseConfig struct {
	Path           string        `yaml:"path"` // defaults to <data-dir>/kvpub.db
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
	BusyTimeout    int           `yaml:"busy_timeout"` // milliseconds
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	RecoverCorrupt bool          `yaml:"recover_corrupt"`
}

// BoltConfig configures the bbolt backend.
type BoltConfig struct {
	Path        string        `yaml:"path"` // defaults to <data-dir>/kvpub.bolt
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	Cap          int `yaml:"cap"`
	ValueCeiling int `yaml:"value_ceiling"`
}

// LimitsConfig holds the write size limits. Both are exclusive upper bounds
// in bytes.
type LimitsConfig struct {
	MaxKeyLen   int `yaml:"max_key_len"`
	MaxValueLen int `yaml:"max_value_len"`
}

// RetentionConfig controls eviction. Once Threshold entries are stored the
// next write evicts down to Retain.
type RetentionConfig struct {
	Threshold     int           `yaml:"threshold"`
	Retain        int           `yaml:"retain"`
	SweepInterval time.Duration `yaml:"sweep_interval"` // 0 disables the background sweep
}

// DefaultConfig returns a Config with the stock limits.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
		},
		Database: DatabaseConfig{
			MaxOpenConns:   3,
			MaxIdleConns:   3,
			BusyTimeout:    5000,
			AcquireTimeout: 5 * time.Second,
		},
		Bolt: BoltConfig{
			LockTimeout: time.Second,
		},
		Memory: MemoryConfig{
			Cap:          1000,
			ValueCeiling: 10000,
		},
		Limits: LimitsConfig{
			MaxKeyLen:   1000,
			MaxValueLen: 4000,
		},
		Retention: RetentionConfig{
			Threshold: 1000,
			Retain:    100,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Database.AcquireTimeout == 0 {
		c.Database.AcquireTimeout = defaults.Database.AcquireTimeout
	}
	if c.Bolt.LockTimeout == 0 {
		c.Bolt.LockTimeout = defaults.Bolt.LockTimeout
	}
	if c.Memory.Cap == 0 {
		c.Memory.Cap = defaults.Memory.Cap
	}
	if c.Memory.ValueCeiling == 0 {
		c.Memory.ValueCeiling = defaults.Memory.ValueCeiling
	}
	if c.Limits.MaxKeyLen == 0 {
		c.Limits.MaxKeyLen = defaults.Limits.MaxKeyLen
	}
	if c.Limits.MaxValueLen == 0 {
		c.Limits.MaxValueLen = defaults.Limits.MaxValueLen
	}
	if c.Retention.Threshold == 0 {
		c.Retention.Threshold = defaults.Retention.Threshold
	}
	if c.Retention.Retain == 0 {
		c.Retention.Retain = defaults.Retention.Retain
	}
}

// DatabasePath returns the SQLite file path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, "kvpub.db")
}

// SetDatabaseURI points the SQLite backend at uri. The sqlite:// and file:
// prefixes are stripped. Any other scheme is kept as given so Validate can
// reject it.
func (c *Config) SetDatabaseURI(uri string) {
	path := strings.TrimPrefix(uri, "sqlite://")
	if rest, ok := strings.CutPrefix(path, "file://"); ok {
		path = rest
	} else {
		path = strings.TrimPrefix(path, "file:")
	}
	c.Database.Path = path
}

// BoltPath returns the bbolt file path.
func (c *Config) BoltPath() string {
	if c.Bolt.Path != "" {
		return c.Bolt.Path
	}
	return filepath.Join(c.DataDir, "kvpub.bolt")
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
