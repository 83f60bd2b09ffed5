package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/hay-kot/kvpub/internal/core/validate"
)

var backends = []string{BackendMemory, BackendSQLite, BackendBolt}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("data_dir", c.DataDir, validate.NonBlank),
		criterio.Run("server.port", c.Server.Port, portInRange),
		criterio.Run("store.backend", c.Store.Backend, oneOf(backends)),
		criterio.Run("database.path", c.Database.Path, noURIScheme),
		criterio.Run("database.max_open_conns", c.Database.MaxOpenConns, atLeast(1)),
		criterio.Run("database.busy_timeout", c.Database.BusyTimeout, atLeast(0)),
		criterio.Run("limits.max_key_len", c.Limits.MaxKeyLen, atLeast(1)),
		criterio.Run("limits.max_value_len", c.Limits.MaxValueLen, atLeast(1)),
		c.validateRetention(),
	)
}

// ValidateDeep runs Validate and then checks that the config file and the
// storage paths are usable. An empty configPath skips the config file check.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		c.validateStorePath(),
	)
}

func (c *Config) validateRetention() error {
	var errs criterio.FieldErrorsBuilder

	if c.Retention.Threshold < 1 {
		errs = errs.Append("retention.threshold", errors.New("must be at least 1"))
	}
	if c.Retention.Retain < 0 {
		errs = errs.Append("retention.retain", errors.New("must not be negative"))
	}
	if c.Retention.Retain >= c.Retention.Threshold {
		errs = errs.Append("retention.retain", fmt.Errorf("must be less than retention.threshold (%d)", c.Retention.Threshold))
	}
	if c.Retention.SweepInterval < 0 {
		errs = errs.Append("retention.sweep_interval", errors.New("must not be negative"))
	}

	return errs.ToError()
}

func (c *Config) validateStorePath() error {
	switch c.Store.Backend {
	case BackendSQLite:
		return criterio.Run("database.path", c.DatabasePath(), parentIsDirectoryOrNotExist)
	case BackendBolt:
		return criterio.Run("bolt.path", c.BoltPath(), parentIsDirectoryOrNotExist)
	default:
		return nil
	}
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// noURIScheme rejects database paths that still carry a scheme, such as a
// postgres:// connection string.
func noURIScheme(path string) error {
	scheme, _, ok := strings.Cut(path, "://")
	if ok && scheme != "" && !strings.ContainsAny(scheme, `/\`) {
		return fmt.Errorf("unsupported URI scheme %q, expected a file path, sqlite:// or file:", scheme)
	}
	return nil
}

func portInRange(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("%d is not a valid port", p)
	}
	return nil
}

func atLeast(n int) func(int) error {
	return func(v int) error {
		if v < n {
			return fmt.Errorf("must be at least %d", n)
		}
		return nil
	}
}

func oneOf(allowed []string) func(string) error {
	return func(s string) error {
		if !slices.Contains(allowed, s) {
			return fmt.Errorf("%q must be one of %v", s, allowed)
		}
		return nil
	}
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return errors.New("exists but is not a directory")
	}
	return nil
}

func parentIsDirectoryOrNotExist(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return isDirectoryOrNotExist(filepath.Dir(path))
}
