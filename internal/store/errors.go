package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by NotFoundError.
	ErrNotFound = errors.New("record not found")
	// ErrAmbiguousUpdate is matched by AmbiguousUpdateError.
	ErrAmbiguousUpdate = errors.New("ambiguous update")
	// ErrTableNotFound is matched by TableNotFoundError.
	ErrTableNotFound = errors.New("table not found")
	// ErrNothingToWrite means no present value resolved to a live column.
	ErrNothingToWrite = errors.New("no matching columns found in database")
	// ErrUnconfirmed is matched by UnconfirmedError.
	ErrUnconfirmed = errors.New("write committed but not confirmed")
)

// NotFoundError reports a target id missing at write time.
type NotFoundError struct {
	Table string
	ID    int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record with id %d not found in %s", e.ID, e.Table)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousUpdateError reports a write that matched more than one row.
// The transaction has always been rolled back.
type AmbiguousUpdateError struct {
	Table string
	ID    int64
	Rows  int64
}

func (e *AmbiguousUpdateError) Error() string {
	return fmt.Sprintf("write to record %d in %s would affect %d rows; rolled back", e.ID, e.Table, e.Rows)
}

func (e *AmbiguousUpdateError) Is(target error) bool { return target == ErrAmbiguousUpdate }

// TableNotFoundError reports a missing table, as distinct from an empty one.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}

func (e *TableNotFoundError) Is(target error) bool { return target == ErrTableNotFound }

// UnconfirmedError reports a committed write whose read-back failed. The
// row with ID exists; writing it again would duplicate it.
type UnconfirmedError struct {
	Table string
	ID    int64
	Err   error
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("record %d committed to %s but not confirmed: %v", e.ID, e.Table, e.Err)
}

func (e *UnconfirmedError) Is(target error) bool { return target == ErrUnconfirmed }

func (e *UnconfirmedError) Unwrap() error { return e.Err }
