package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"moorlog/internal/logging"
)

func legacyRepairTable(t *testing.T, c Connector) {
	execSQL(t, c,
		`CREATE TABLE repair_normalized (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site TEXT,
			fishing_vandalism TEXT,
			buoy_condition TEXT,
			repair_fishing_vandalism TEXT
		)`,
		`INSERT INTO repair_normalized (site, fishing_vandalism, buoy_condition, repair_fishing_vandalism) VALUES
			('0N165E', 'nets on bridle', 'good', NULL),
			('2S140W', NULL, 'fouled', NULL),
			('8N95W', 'old text', NULL, 'already migrated')`,
	)
}

func repairCatalog() ([]Migration, []ColumnCopy) {
	return []Migration{
			{Table: "repair_normalized", Column: "buoy_details", Def: "TEXT"},
			{Table: "repair_normalized", Column: "repair_fishing_vandalism", Def: "TEXT"},
			{Table: "repair_normalized", Column: "tube_new_sn", Def: "TEXT"},
			{Table: "repair_normalized", Column: "site_code", Def: "TEXT", Alternates: []string{"site"}},
			{Table: "recoveries_normalized", Column: "seacat_condition", Def: "TEXT"},
		}, []ColumnCopy{
			{"repair_normalized", "fishing_vandalism", "repair_fishing_vandalism"},
			{"repair_normalized", "buoy_condition", "buoy_details"},
			{"repair_normalized", "never_existed", "buoy_details"},
		}
}

func TestMigratorAddsColumnsThenCopies(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	legacyRepairTable(t, src)

	migrations, copies := repairCatalog()
	metrics := NewMetrics(prometheus.NewRegistry())
	res, err := NewMigrator(src, migrations, copies).WithMetrics(metrics).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"repair_normalized.buoy_details", "repair_normalized.tube_new_sn"}, res.Added)
	assert.Equal(t, int64(1), res.Copied["repair_normalized.repair_fishing_vandalism"])
	assert.Equal(t, int64(2), res.Copied["repair_normalized.buoy_details"])
	// existing column, live alternate, missing table, inapplicable copy
	assert.Equal(t, 4, res.Skipped)

	rows := snapshot(t, src, "repair_normalized")
	require.Len(t, rows, 3)
	assert.Equal(t, "nets on bridle", rows[0].String("repair_fishing_vandalism"))
	assert.Equal(t, "good", rows[0].String("buoy_details"))
	assert.Equal(t, "fouled", rows[1].String("buoy_details"))
	assert.Nil(t, rows[1]["repair_fishing_vandalism"])
	// populated current values are never overwritten
	assert.Equal(t, "already migrated", rows[2].String("repair_fishing_vandalism"))
	assert.Nil(t, rows[2]["buoy_details"])

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.migrated.WithLabelValues("repair_normalized", "added")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.migrated.WithLabelValues("repair_normalized", "copied")))
}

func TestMigratorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)
	legacyRepairTable(t, src)
	migrations, copies := repairCatalog()

	_, err := NewMigrator(src, migrations, copies).Run(ctx)
	require.NoError(t, err)
	once := snapshot(t, src, "repair_normalized")
	colsOnce, err := Inspect(ctx, src, "repair_normalized")
	require.NoError(t, err)

	res, err := NewMigrator(src, migrations, copies).Run(ctx)
	require.NoError(t, err)
	twice := snapshot(t, src, "repair_normalized")
	colsTwice, err := Inspect(ctx, src, "repair_normalized")
	require.NoError(t, err)

	assert.Empty(t, res.Added)
	for k, n := range res.Copied {
		assert.Zero(t, n, k)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second migration changed table (-once +twice):\n%s", diff)
	}
	assert.Equal(t, colsOnce.Names(), colsTwice.Names())
}

func TestMigratorWarnsWhenSlow(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logging.Replace(zap.New(core))
	defer restore()

	ctx := context.Background()
	src := newTestSource(t)
	legacyRepairTable(t, src)
	migrations, copies := repairCatalog()

	res, err := NewMigrator(src, migrations, copies).WithSlowThreshold(time.Hour).Run(ctx)
	require.NoError(t, err)
	assert.Greater(t, int64(res.Duration), int64(0))
	assert.Zero(t, logs.Len())

	_, err = NewMigrator(src, migrations, copies).WithSlowThreshold(time.Nanosecond).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "Migrator.Run took")
}

func TestMigratorBootstrap(t *testing.T) {
	ctx := context.Background()
	src := newTestSource(t)

	m := NewMigrator(src, []Migration{{Table: "deployments_normalized", Column: "site", Def: "TEXT"}}, nil).
		WithBootstrap("deployments_normalized")
	res, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"deployments_normalized"}, res.Created)
	assert.Equal(t, []string{"deployments_normalized.site"}, res.Added)

	cols, err := Inspect(ctx, src, "deployments_normalized")
	require.NoError(t, err)
	assert.Equal(t, []string{"created_at", "id", "site", "updated_at"}, cols.Names())

	res, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Added)
}
