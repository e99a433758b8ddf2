package mapping

import (
	"fmt"
	"strings"

	"moorlog/internal/logging"
	"moorlog/internal/store"
)

// SchemaMismatch records a present value whose field has no live column.
// It is a diagnostic, never an error.
type SchemaMismatch struct {
	Table      string
	Field      string
	Candidates []string
}

func (m SchemaMismatch) String() string {
	return fmt.Sprintf("%s.%s: none of [%s] exists", m.Table, m.Field, strings.Join(m.Candidates, ", "))
}

// Resolve returns the first candidate present in available. It never falls
// back to a candidate that is not live.
func Resolve(candidates []string, available store.ColumnSet) (string, bool) {
	for _, c := range candidates {
		if live, ok := available.Lookup(c); ok {
			return live, true
		}
	}
	return "", false
}

// Resolver binds fields to the live columns of one table and collects the
// fields it could not bind.
type Resolver struct {
	table      string
	cols       store.ColumnSet
	mismatches []SchemaMismatch
}

// NewResolver creates a resolver over the live columns of table.
func NewResolver(table string, cols store.ColumnSet) *Resolver {
	return &Resolver{table: table, cols: cols}
}

// Resolve returns the live column for field. When no candidate exists it
// records a SchemaMismatch, logs a warning and reports false.
func (r *Resolver) Resolve(field string, candidates []string) (string, bool) {
	if col, ok := Resolve(candidates, r.cols); ok {
		return col, true
	}
	m := SchemaMismatch{Table: r.table, Field: field, Candidates: append([]string(nil), candidates...)}
	r.mismatches = append(r.mismatches, m)
	logging.Get(logging.CategorySchema).Warn("Schema mismatch: %s", m)
	return "", false
}

// Mismatches returns the fields that could not be bound so far.
func (r *Resolver) Mismatches() []SchemaMismatch {
	return r.mismatches
}
