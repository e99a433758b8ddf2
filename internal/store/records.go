package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"moorlog/internal/logging"
)

// Assignment stages one column value.
type Assignment struct {
	Column string
	Value  any
}

// Confirm names a column to read back after commit under a caller label.
type Confirm struct {
	Label  string
	Column string
}

// Staged is the write-set produced for one live column set.
type Staged struct {
	Assignments []Assignment
	Confirm     []Confirm
}

func (s Staged) touches(column string) bool {
	for _, a := range s.Assignments {
		if strings.EqualFold(a.Column, column) {
			return true
		}
	}
	return false
}

// Columns returns the staged column names in write order.
func (s Staged) Columns() []string {
	out := make([]string, len(s.Assignments))
	for i, a := range s.Assignments {
		out[i] = a.Column
	}
	return out
}

func (s Staged) validate(table string, cols ColumnSet) error {
	seen := make(map[string]struct{}, len(s.Assignments))
	for _, a := range s.Assignments {
		if !cols.Has(a.Column) {
			return fmt.Errorf("staged column %q is not a column of %s", a.Column, table)
		}
		key := strings.ToLower(a.Column)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("column %q staged twice for %s", a.Column, table)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Plan produces a write-set against the live columns of the target table.
type Plan interface {
	Stage(cols ColumnSet) (Staged, error)
}

// PlanFunc adapts a function to Plan.
type PlanFunc func(cols ColumnSet) (Staged, error)

func (f PlanFunc) Stage(cols ColumnSet) (Staged, error) { return f(cols) }

// Result describes a committed write.
type Result struct {
	OperationID string
	ID          int64
	Columns     []string       // columns written, excluding timestamps
	Confirmed   map[string]any // confirmation values read back on a fresh connection
}

// RecordStore performs verified writes and plain reads against record
// tables. Every call acquires its own connection from the Connector and
// releases it before returning.
type RecordStore struct {
	connector Connector
	metrics   *Metrics
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithMetrics attaches write metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *RecordStore) { s.metrics = m }
}

// NewRecordStore creates a RecordStore over c.
func NewRecordStore(c Connector, opts ...Option) *RecordStore {
	s := &RecordStore{connector: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the attached metrics, possibly nil.
func (s *RecordStore) Metrics() *Metrics { return s.metrics }

// Update writes plan to the row with id. The row must exist before the
// write, the UPDATE must affect exactly one row, and the confirmation
// columns are re-read on a fresh connection after commit. A failed
// read-back returns the Result and an UnconfirmedError.
func (s *RecordStore) Update(ctx context.Context, table string, id int64, plan Plan) (res *Result, err error) {
	opID := uuid.NewString()
	log := logging.Get(logging.CategoryStore).With("op", opID, "table", table, "id", id)
	start := time.Now()
	defer func() {
		s.metrics.ObserveWrite(table, "update", err, time.Since(start))
		if err != nil {
			log.Warn("update failed (%s): %v", Outcome(err), err)
		}
	}()

	staged, err := s.update(ctx, table, id, plan)
	if err != nil {
		return nil, err
	}
	res = &Result{OperationID: opID, ID: id, Columns: staged.Columns()}
	if res.Confirmed, err = s.confirm(ctx, table, id, staged.Confirm); err != nil {
		return res, &UnconfirmedError{Table: table, ID: id, Err: err}
	}
	log.Info("updated %d columns", len(staged.Assignments))
	return res, nil
}

func (s *RecordStore) update(ctx context.Context, table string, id int64, plan Plan) (Staged, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return Staged{}, err
	}
	defer conn.Close()

	cols, err := Columns(ctx, conn, table)
	if err != nil {
		return Staged{}, err
	}
	if err := conn.exists(ctx, table, id); err != nil {
		return Staged{}, err
	}

	staged, err := plan.Stage(cols)
	if err != nil {
		return Staged{}, err
	}
	if len(staged.Assignments) == 0 {
		return Staged{}, ErrNothingToWrite
	}
	if err := staged.validate(table, cols); err != nil {
		return Staged{}, err
	}

	d := conn.dialect
	sets := make([]string, 0, len(staged.Assignments)+1)
	args := make([]any, 0, len(staged.Assignments)+1)
	for _, a := range staged.Assignments {
		args = append(args, a.Value)
		sets = append(sets, d.Quote(a.Column)+" = "+d.Placeholder(len(args)))
	}
	if live, ok := cols.Lookup("updated_at"); ok && !staged.touches("updated_at") {
		sets = append(sets, d.Quote(live)+" = CURRENT_TIMESTAMP")
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s AND id IS NOT NULL",
		d.Quote(table), strings.Join(sets, ", "), d.Placeholder(len(args)))

	err = inTx(ctx, conn.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return checkRowCount(table, id, n)
	})
	return staged, err
}

// Insert writes plan as a new row and returns its generated id. When the
// row is committed but cannot be read back, Insert returns the Result with
// the new id together with an UnconfirmedError.
func (s *RecordStore) Insert(ctx context.Context, table string, plan Plan) (res *Result, err error) {
	opID := uuid.NewString()
	log := logging.Get(logging.CategoryStore).With("op", opID, "table", table)
	start := time.Now()
	defer func() {
		s.metrics.ObserveWrite(table, "insert", err, time.Since(start))
		if err != nil {
			log.Warn("insert failed (%s): %v", Outcome(err), err)
		}
	}()

	id, staged, err := s.insert(ctx, table, plan)
	if err != nil {
		return nil, err
	}
	res = &Result{OperationID: opID, ID: id, Columns: staged.Columns()}
	if res.Confirmed, err = s.confirm(ctx, table, id, staged.Confirm); err != nil {
		return res, &UnconfirmedError{Table: table, ID: id, Err: err}
	}
	log.Info("inserted record %d with %d columns", id, len(staged.Assignments))
	return res, nil
}

func (s *RecordStore) insert(ctx context.Context, table string, plan Plan) (int64, Staged, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return 0, Staged{}, err
	}
	defer conn.Close()

	cols, err := Columns(ctx, conn, table)
	if err != nil {
		return 0, Staged{}, err
	}
	staged, err := plan.Stage(cols)
	if err != nil {
		return 0, Staged{}, err
	}
	if len(staged.Assignments) == 0 {
		return 0, Staged{}, ErrNothingToWrite
	}
	if err := staged.validate(table, cols); err != nil {
		return 0, Staged{}, err
	}

	d := conn.dialect
	names := make([]string, 0, len(staged.Assignments)+2)
	values := make([]string, 0, len(staged.Assignments)+2)
	args := make([]any, 0, len(staged.Assignments))
	for _, a := range staged.Assignments {
		args = append(args, a.Value)
		names = append(names, d.Quote(a.Column))
		values = append(values, d.Placeholder(len(args)))
	}
	for _, ts := range []string{"created_at", "updated_at"} {
		if live, ok := cols.Lookup(ts); ok && !staged.touches(ts) {
			names = append(names, d.Quote(live))
			values = append(values, "CURRENT_TIMESTAMP")
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(names, ", "), strings.Join(values, ", "))

	var id int64
	err = inTx(ctx, conn.db, func(tx *sql.Tx) error {
		if d.ReturningID() {
			if err := tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
				return fmt.Errorf("insert into %s: %w", table, err)
			}
			return nil
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	return id, staged, err
}

// Delete removes the row with id. Exactly one row must be affected.
func (s *RecordStore) Delete(ctx context.Context, table string, id int64) (err error) {
	log := logging.Get(logging.CategoryStore).With("op", uuid.NewString(), "table", table, "id", id)
	start := time.Now()
	defer func() {
		s.metrics.ObserveWrite(table, "delete", err, time.Since(start))
		if err != nil {
			log.Warn("delete failed (%s): %v", Outcome(err), err)
		} else {
			log.Info("deleted record")
		}
	}()

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := Columns(ctx, conn, table); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", conn.q(table), conn.dialect.Placeholder(1))
	return inTx(ctx, conn.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return checkRowCount(table, id, n)
	})
}

// confirm re-reads the confirmation columns on a fresh connection.
func (s *RecordStore) confirm(ctx context.Context, table string, id int64, fields []Confirm) (map[string]any, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("confirm connection: %w", err)
	}
	defer conn.Close()

	selects := []string{"id"}
	for _, f := range fields {
		selects = append(selects, conn.q(f.Column))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s",
		strings.Join(selects, ", "), conn.q(table), conn.dialect.Placeholder(1))

	values := make([]any, len(selects))
	ptrs := make([]any, len(selects))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := conn.db.QueryRowContext(ctx, query, id).Scan(ptrs...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Table: table, ID: id}
		}
		return nil, fmt.Errorf("confirm %s: %w", table, err)
	}

	confirmed := make(map[string]any, len(fields))
	for i, f := range fields {
		confirmed[f.Label] = normalizeValue(values[i+1])
	}
	return confirmed, nil
}

func (c *Conn) exists(ctx context.Context, table string, id int64) error {
	var found int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = %s", c.q(table), c.dialect.Placeholder(1))
	err := c.db.QueryRowContext(ctx, query, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Table: table, ID: id}
	}
	if err != nil {
		return fmt.Errorf("verify %s id %d: %w", table, id, err)
	}
	return nil
}

func checkRowCount(table string, id, n int64) error {
	switch {
	case n == 0:
		return &NotFoundError{Table: table, ID: id}
	case n > 1:
		return &AmbiguousUpdateError{Table: table, ID: id, Rows: n}
	}
	return nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
