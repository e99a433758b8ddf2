// Package config provides configuration management for moorlog.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all moorlog configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Tables     TablesConfig     `yaml:"tables"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// TablesConfig overrides the table used for each record kind, and names
// the equipment tables searched by the history commands. An empty
// SpoolInventory or LegacyDeployments disables that lookup.
type TablesConfig struct {
	Deployments       string `yaml:"deployments"`
	Recoveries        string `yaml:"recoveries"`
	Repairs           string `yaml:"repairs"`
	SpoolInventory    string `yaml:"spool_inventory"`
	LegacyDeployments string `yaml:"legacy_deployments"` // flat nylonNsn/nylonNln table
}

// MigrationsConfig controls the schema migrator.
type MigrationsConfig struct {
	OnStart   bool   `yaml:"on_start"`   // run before every CLI command
	Bootstrap bool   `yaml:"bootstrap"`  // create missing tables
	SlowAfter string `yaml:"slow_after"` // warn when a run takes longer
}

// MetricsConfig configures the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			DSN:         "~/Apps/databases/Cruise_Logs.db",
			BusyTimeout: "5s",
			OpTimeout:   "30s",
		},
		Tables: TablesConfig{
			Deployments: "deployments_normalized",
			Recoveries:  "recoveries_normalized",
			Repairs:     "repair_normalized",

			SpoolInventory:    "spool_inventory",
			LegacyDeployments: "deployments",
		},
		Migrations: MigrationsConfig{
			OnStart:   true,
			Bootstrap: false,
			SlowAfter: "2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.Database.DSN = expandHome(cfg.Database.DSN)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MOORLOG_DB"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("MOORLOG_DRIVER"); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("MOORLOG_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// GetBusyTimeout returns the SQLite busy timeout.
func (c *Config) GetBusyTimeout() time.Duration {
	return parseDuration(c.Database.BusyTimeout, 5*time.Second)
}

// GetOpTimeout returns the deadline applied to a single CLI operation.
func (c *Config) GetOpTimeout() time.Duration {
	return parseDuration(c.Database.OpTimeout, 30*time.Second)
}

// GetMigrationSlowAfter returns the run time past which a migration warns.
func (c *Config) GetMigrationSlowAfter() time.Duration {
	return parseDuration(c.Migrations.SlowAfter, 2*time.Second)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverSQLite3, DriverPgx:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Tables.Deployments == "" || c.Tables.Recoveries == "" || c.Tables.Repairs == "" {
		return fmt.Errorf("table names must not be empty")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
