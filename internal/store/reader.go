package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Row is one table row keyed by column name. Text columns are strings.
type Row map[string]any

// String returns the column as text, "" when null or missing.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer.
func (r Row) Int64(column string) (int64, bool) {
	switch v := r[column].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ID returns the row id, 0 when missing.
func (r Row) ID() int64 {
	id, _ := r.Int64("id")
	return id
}

// Predicate filters a search. Like matches a case-insensitive substring.
type Predicate struct {
	Column string
	Value  any
	Like   bool
}

// Order sorts a search.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a search over one table. Columns must be live.
type Query struct {
	Where   []Predicate
	OrderBy []Order
	Limit   int
}

// Fetch returns the row with id.
func (s *RecordStore) Fetch(ctx context.Context, table string, id int64) (Row, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := Columns(ctx, conn, table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = %s", conn.q(table), conn.dialect.Placeholder(1))
	rows, err := conn.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("fetch %s id %d: %w", table, id, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Table: table, ID: id}
	}
	return out[0], nil
}

// Search returns rows matching every predicate.
func (s *RecordStore) Search(ctx context.Context, table string, q Query) ([]Row, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	cols, err := Columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}

	d := conn.dialect
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE 1=1", d.Quote(table))
	args := make([]any, 0, len(q.Where))
	for _, p := range q.Where {
		if !cols.Has(p.Column) {
			return nil, fmt.Errorf("search column %q is not a column of %s", p.Column, table)
		}
		if p.Like {
			args = append(args, "%"+strings.ToLower(fmt.Sprint(p.Value))+"%")
			fmt.Fprintf(&b, " AND LOWER(%s) LIKE %s", d.Quote(p.Column), d.Placeholder(len(args)))
		} else {
			args = append(args, p.Value)
			fmt.Fprintf(&b, " AND %s = %s", d.Quote(p.Column), d.Placeholder(len(args)))
		}
	}
	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts = append(parts, d.Quote(o.Column)+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := conn.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Distinct returns the sorted non-blank values of column.
func (s *RecordStore) Distinct(ctx context.Context, table, column string) ([]string, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := Columns(ctx, conn, table); err != nil {
		return nil, err
	}
	c := conn.q(column)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s != '' ORDER BY %s",
		c, conn.q(table), c, c, c)
	rows, err := conn.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v.String)
	}
	return out, rows.Err()
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(names))
		for i, n := range names {
			row[n] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
