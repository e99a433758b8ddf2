package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"moorlog/internal/config"
)

// BenchmarkMigratorUpToDate measures the introspection cost of a run that
// finds every column already present, which is what every CLI start pays.
func BenchmarkMigratorUpToDate(b *testing.B) {
	for _, driver := range []string{config.DriverSQLite, config.DriverSQLite3} {
		b.Run(driver, func(b *testing.B) {
			ctx := context.Background()
			src, err := NewSource(config.DatabaseConfig{
				Driver: driver,
				DSN:    filepath.Join(b.TempDir(), "Cruise_Logs.db"),
			}, time.Second)
			if err != nil {
				b.Fatalf("NewSource failed: %v", err)
			}

			var migrations []Migration
			for _, table := range []string{"deployments_normalized", "recoveries_normalized", "repair_normalized"} {
				for _, col := range []string{"site", "mooringid", "cruise", "personnel", "comments", "buoy_details"} {
					migrations = append(migrations, Migration{Table: table, Column: col, Def: "TEXT"})
				}
			}
			m := NewMigrator(src, migrations, nil).WithBootstrap("deployments_normalized", "recoveries_normalized", "repair_normalized")
			if _, err := m.Run(ctx); err != nil {
				b.Fatalf("initial Run failed: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				res, err := m.Run(ctx)
				if err != nil {
					b.Fatalf("Run failed: %v", err)
				}
				if len(res.Added) != 0 {
					b.Fatalf("unexpected additions: %v", res.Added)
				}
			}
		})
	}
}
