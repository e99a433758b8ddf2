package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"    // register sqlite3 (cgo)
	_ "modernc.org/sqlite"             // register sqlite (pure Go)

	"moorlog/internal/config"
	"moorlog/internal/logging"
)

var sqlOpen = sql.Open

// Connector hands out a dedicated connection for one logical operation.
// Callers must Close it on every exit path.
type Connector interface {
	Connect(ctx context.Context) (*Conn, error)
}

// Conn is a single-connection handle bound to a dialect.
type Conn struct {
	db      *sql.DB
	dialect Dialect
}

// NewConn wraps an open *sql.DB. The caller keeps ownership semantics:
// Close closes db.
func NewConn(db *sql.DB, d Dialect) *Conn {
	return &Conn{db: db, dialect: d}
}

func (c *Conn) DB() *sql.DB        { return c.db }
func (c *Conn) Dialect() Dialect   { return c.dialect }
func (c *Conn) Close() error       { return c.db.Close() }
func (c *Conn) q(id string) string { return c.dialect.Quote(id) }

// Source opens a fresh connection per Connect call. Nothing is pooled or
// cached between operations.
type Source struct {
	driver      string
	dsn         string
	dialect     Dialect
	busyTimeout time.Duration
}

// NewSource builds a connection factory from database config.
func NewSource(cfg config.DatabaseConfig, busyTimeout time.Duration) (*Source, error) {
	s := &Source{driver: cfg.Driver, dsn: cfg.DSN, busyTimeout: busyTimeout}
	switch cfg.Driver {
	case config.DriverSQLite, config.DriverSQLite3:
		s.dialect = SQLite()
	case config.DriverPgx:
		s.dialect = Postgres()
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	return s, nil
}

// Dialect returns the SQL dialect of the source.
func (s *Source) Dialect() Dialect { return s.dialect }

// Connect opens and pings a new single-connection handle.
func (s *Source) Connect(ctx context.Context) (*Conn, error) {
	if s.dialect.Name() == "sqlite" && isFilePath(s.dsn) {
		dir := filepath.Dir(s.dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sqlOpen(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.driver, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", s.driver, err)
	}

	if s.dialect.Name() == "sqlite" && s.busyTimeout > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds())); err != nil {
			logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
		}
	}

	return &Conn{db: db, dialect: s.dialect}, nil
}

func isFilePath(dsn string) bool {
	return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
}
