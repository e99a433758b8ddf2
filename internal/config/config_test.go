package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected Driver=sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Tables.Repairs != "repair_normalized" {
		t.Errorf("expected repair table, got %s", cfg.Tables.Repairs)
	}
	if !cfg.Migrations.OnStart {
		t.Error("expected migrations to run on start by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("MOORLOG_DB", "")
	t.Setenv("MOORLOG_DRIVER", "")
	t.Setenv("MOORLOG_LOG_LEVEL", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "moorlog.yaml")

	cfg := DefaultConfig()
	cfg.Database.DSN = filepath.Join(tmpDir, "cruise.db")
	cfg.Tables.Recoveries = "recoveries_v2"
	cfg.Logging.Categories = map[string]bool{"store": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assert.Equal(t, cfg.Database.DSN, loaded.Database.DSN)
	assert.Equal(t, "recoveries_v2", loaded.Tables.Recoveries)
	assert.Equal(t, map[string]bool{"store": false}, loaded.Logging.Categories)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("MOORLOG_DB", "")
	t.Setenv("MOORLOG_DRIVER", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Apps", "databases", "Cruise_Logs.db"), cfg.Database.DSN)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"pgx driver", func(c *Config) { c.Database.Driver = DriverPgx }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"empty dsn", func(c *Config) { c.Database.DSN = "  " }, true},
		{"empty table", func(c *Config) { c.Tables.Deployments = "" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Second, cfg.GetBusyTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetOpTimeout())

	cfg.Database.BusyTimeout = "250ms"
	cfg.Database.OpTimeout = "garbage"
	assert.Equal(t, 250*time.Millisecond, cfg.GetBusyTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetOpTimeout())
}

func TestDatabaseConfig_IsSQLite(t *testing.T) {
	assert.True(t, DatabaseConfig{Driver: DriverSQLite}.IsSQLite())
	assert.True(t, DatabaseConfig{Driver: DriverSQLite3}.IsSQLite())
	assert.False(t, DatabaseConfig{Driver: DriverPgx}.IsSQLite())
}
