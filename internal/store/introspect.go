package store

import (
	"context"
	"fmt"

	"moorlog/internal/logging"
)

// Columns returns the live column set of table. A missing table yields
// TableNotFoundError rather than an empty set.
func Columns(ctx context.Context, conn *Conn, table string) (ColumnSet, error) {
	exists, err := conn.dialect.TableExists(ctx, conn.db, table)
	if err != nil {
		return ColumnSet{}, fmt.Errorf("check table %s: %w", table, err)
	}
	if !exists {
		return ColumnSet{}, &TableNotFoundError{Table: table}
	}

	names, err := conn.dialect.ColumnNames(ctx, conn.db, table)
	if err != nil {
		return ColumnSet{}, fmt.Errorf("list columns of %s: %w", table, err)
	}
	logging.SchemaDebug("table %s has %d columns", table, len(names))
	return NewColumnSet(names...), nil
}

// Inspect opens its own connection and returns the column set of table.
func Inspect(ctx context.Context, c Connector, table string) (ColumnSet, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return ColumnSet{}, err
	}
	defer conn.Close()
	return Columns(ctx, conn, table)
}
