// Package main implements the moorlog CLI.
//
// moorlog stores mooring deployment, recovery and repair records in a
// cruise log database whose columns drift between installations. Every
// command introspects the live tables before it reads or writes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"moorlog/internal/config"
	"moorlog/internal/logging"
	"moorlog/internal/mapping"
	"moorlog/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string
	driver     string

	// Process state built by initApp
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *store.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "moorlog",
	Short: "Schema-adaptive mooring record store",
	Long: `moorlog saves and reads mooring deployment, recovery and repair records.

Input fields are matched against whatever columns the live table has.
Values with no home are reported, never silently dropped, and every
write is read back on a fresh connection before it is confirmed.`,
	PersistentPreRunE: initApp,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushMetrics()
		logging.Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "moorlog.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path or DSN (overrides config)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: sqlite, sqlite3 or pgx")

	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "YAML or JSON form values (- for stdin)")
	saveCmd.Flags().Int64Var(&saveID, "id", 0, "Update this record instead of inserting")
	_ = saveCmd.MarkFlagRequired("file")

	searchCmd.Flags().StringVar(&searchSite, "site", "", "Site")
	searchCmd.Flags().StringVar(&searchMooring, "mooring", "", "Mooring ID")
	searchCmd.Flags().StringVar(&searchCruise, "cruise", "", "Cruise")
	searchCmd.Flags().StringVar(&searchPersonnel, "personnel", "", "Personnel")

	rootCmd.AddCommand(
		migrateCmd,
		inspectCmd,
		saveCmd,
		showCmd,
		deleteCmd,
		searchCmd,
		sitesCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initApp loads config, applies flag overrides and starts logging.
func initApp(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		loaded.Database.DSN = dbPath
	}
	if driver != "" {
		loaded.Database.Driver = driver
	}
	if verbose {
		loaded.Logging.DebugMode = true
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logging.Initialize(logging.Options{
		Level:      loaded.Logging.Level,
		Format:     loaded.Logging.Format,
		File:       loaded.Logging.File,
		DebugMode:  loaded.Logging.DebugMode,
		Categories: loaded.Logging.Categories,
	}); err != nil {
		return err
	}

	cfg = loaded
	registry = prometheus.NewRegistry()
	metrics = store.NewMetrics(registry)
	logging.BootDebug("moorlog %s using %s database %s", cmd.Name(), cfg.Database.Driver, cfg.Database.DSN)
	return nil
}

func flushMetrics() {
	if cfg == nil || registry == nil || cfg.Metrics.Textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, registry); err != nil {
		logging.Get(logging.CategoryBoot).Error("Failed to write metrics textfile %s: %v", cfg.Metrics.Textfile, err)
	}
}

// opContext bounds a single command by the configured operation timeout.
func opContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, cfg.GetOpTimeout())
}

// openMapper builds the mapper for a command. Unless skipMigrate is set,
// the schema migrator runs first when the config asks for it.
func openMapper(ctx context.Context, skipMigrate bool) (*mapping.Mapper, error) {
	src, err := store.NewSource(cfg.Database, cfg.GetBusyTimeout())
	if err != nil {
		return nil, err
	}
	m := mapping.New(src,
		mapping.WithMetrics(metrics),
		mapping.WithTables(cfg.Tables),
		mapping.WithBootstrap(cfg.Migrations.Bootstrap),
		mapping.WithSlowMigration(cfg.GetMigrationSlowAfter()),
	)
	if cfg.Migrations.OnStart && !skipMigrate {
		res, err := m.Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate on start: %w", err)
		}
		if len(res.Created)+len(res.Added) > 0 {
			logging.Boot("schema updated: %d tables created, %d columns added", len(res.Created), len(res.Added))
		}
	}
	return m, nil
}
