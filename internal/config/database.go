package config

// Supported database/sql driver names.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, cgo
	DriverPgx     = "pgx"     // github.com/jackc/pgx/v5/stdlib
)

// DatabaseConfig configures the connection factory.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`          // file path for SQLite, URL for Postgres
	BusyTimeout string `yaml:"busy_timeout"` // SQLite only
	OpTimeout   string `yaml:"op_timeout"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == DriverSQLite || d.Driver == DriverSQLite3
}
