package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moorlog/internal/logging"
)

// Migration adds Column to Table with definition Def when neither it nor
// any of its Alternates exists.
type Migration struct {
	Table      string
	Column     string
	Def        string
	Alternates []string
}

func (m Migration) present(cols ColumnSet) bool {
	if _, ok := cols.Lookup(m.Column); ok {
		return true
	}
	for _, alt := range m.Alternates {
		if _, ok := cols.Lookup(alt); ok {
			return true
		}
	}
	return false
}

// ColumnCopy fills Current from Deprecated wherever Current is null.
type ColumnCopy struct {
	Table      string
	Deprecated string
	Current    string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Created  []string         // tables created by bootstrap
	Added    []string         // table.column added
	Copied   map[string]int64 // table.current -> rows back-filled
	Skipped  int
	Duration time.Duration
}

// Migrator brings record tables up to the current column catalog. Every
// step is guarded by introspection, so running it repeatedly is safe.
type Migrator struct {
	connector  Connector
	bootstrap  []string
	migrations []Migration
	copies     []ColumnCopy
	metrics    *Metrics
	slowAfter  time.Duration
}

// NewMigrator creates a migrator for the given column additions and copies.
func NewMigrator(c Connector, migrations []Migration, copies []ColumnCopy) *Migrator {
	return &Migrator{connector: c, migrations: migrations, copies: copies}
}

// WithBootstrap makes Run create the listed tables when absent.
func (m *Migrator) WithBootstrap(tables ...string) *Migrator {
	m.bootstrap = append(m.bootstrap, tables...)
	return m
}

// WithMetrics attaches migration metrics.
func (m *Migrator) WithMetrics(metrics *Metrics) *Migrator {
	m.metrics = metrics
	return m
}

// WithSlowThreshold makes Run warn when it takes longer than d.
func (m *Migrator) WithSlowThreshold(d time.Duration) *Migrator {
	m.slowAfter = d
	return m
}

// Run adds missing columns, then back-fills current columns from
// deprecated ones. Tables that do not exist are skipped.
func (m *Migrator) Run(ctx context.Context) (*MigrationResult, error) {
	timer := logging.StartTimer(logging.CategoryMigrate, "Migrator.Run")
	result := &MigrationResult{Copied: make(map[string]int64)}

	conn, err := m.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	for _, table := range m.bootstrap {
		exists, err := conn.dialect.TableExists(ctx, conn.db, table)
		if err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if exists {
			continue
		}
		if _, err := conn.db.ExecContext(ctx, conn.dialect.CreateTable(table)); err != nil {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
		logging.Migrate("Created table %s", table)
		result.Created = append(result.Created, table)
	}

	logging.Migrate("Running schema migrations (%d columns, %d copies)", len(m.migrations), len(m.copies))

	// Columns are re-read per table after additions so copies see them.
	byTable := make(map[string]ColumnSet)
	columns := func(table string) (ColumnSet, bool, error) {
		if cols, ok := byTable[table]; ok {
			return cols, true, nil
		}
		cols, err := Columns(ctx, conn, table)
		if errors.Is(err, ErrTableNotFound) {
			return ColumnSet{}, false, nil
		}
		if err != nil {
			return ColumnSet{}, false, err
		}
		byTable[table] = cols
		return cols, true, nil
	}

	for _, mig := range m.migrations {
		cols, ok, err := columns(mig.Table)
		if err != nil {
			return nil, err
		}
		if !ok {
			logging.MigrateDebug("Table missing, skipping migration: %s.%s", mig.Table, mig.Column)
			result.Skipped++
			continue
		}
		if mig.present(cols) {
			logging.MigrateDebug("Column already exists, skipping: %s.%s", mig.Table, mig.Column)
			result.Skipped++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", conn.q(mig.Table), conn.q(mig.Column), mig.Def)
		logging.MigrateDebug("Executing migration: %s", query)
		if _, err := conn.db.ExecContext(ctx, query); err != nil {
			return nil, fmt.Errorf("add column %s.%s: %w", mig.Table, mig.Column, err)
		}
		logging.Migrate("Migration applied: added %s.%s", mig.Table, mig.Column)
		result.Added = append(result.Added, mig.Table+"."+mig.Column)
		m.metrics.Migrated(mig.Table, "added", 1)
		delete(byTable, mig.Table)
	}

	for _, cp := range m.copies {
		cols, ok, err := columns(cp.Table)
		if err != nil {
			return nil, err
		}
		deprecated, hasOld := cols.Lookup(cp.Deprecated)
		current, hasNew := cols.Lookup(cp.Current)
		if !ok || !hasOld || !hasNew {
			logging.MigrateDebug("Copy not applicable, skipping: %s.%s -> %s", cp.Table, cp.Deprecated, cp.Current)
			result.Skipped++
			continue
		}

		query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL AND %s IS NOT NULL",
			conn.q(cp.Table), conn.q(current), conn.q(deprecated), conn.q(current), conn.q(deprecated))
		res, err := conn.db.ExecContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("copy %s.%s -> %s: %w", cp.Table, cp.Deprecated, cp.Current, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		result.Copied[cp.Table+"."+current] = n
		if n > 0 {
			logging.Migrate("Back-filled %d rows of %s.%s from %s", n, cp.Table, current, deprecated)
			m.metrics.Migrated(cp.Table, "copied", int(n))
		}
	}

	if m.slowAfter > 0 {
		result.Duration = timer.StopWithThreshold(m.slowAfter)
	} else {
		result.Duration = timer.Stop()
	}
	logging.Migrate("Schema migrations complete: added=%d, skipped=%d", len(result.Added), result.Skipped)
	return result, nil
}
