package mapping

import (
	"encoding/json"
	"fmt"
	"strings"

	"moorlog/internal/codec"
	"moorlog/internal/logging"
	"moorlog/internal/store"
)

// KindName identifies a record kind.
type KindName string

const (
	Deployment KindName = "deployment"
	Recovery   KindName = "recovery"
	Repair     KindName = "repair"
)

// KindNames lists the record kinds in display order.
var KindNames = []KindName{Deployment, Recovery, Repair}

// ParseKind accepts a kind name, its plural, or its table name.
func ParseKind(s string) (KindName, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deployment", "deployments", "dep", "deployments_normalized":
		return Deployment, nil
	case "recovery", "recoveries", "rec", "recoveries_normalized":
		return Recovery, nil
	case "repair", "repairs", "repair_normalized":
		return Repair, nil
	}
	return "", fmt.Errorf("unknown record kind %q (want deployment, recovery or repair)", s)
}

// ConfirmField is read back after a write and reported under Label.
type ConfirmField struct {
	Label   string
	Columns []string
}

// SearchField is a search criterion. Like matches a case-insensitive
// substring; otherwise the match is exact.
type SearchField struct {
	Name    string
	Columns []string
	Like    bool
}

// Kind is the mapping table of one record kind.
type Kind struct {
	Name      KindName
	Table     string
	Fields    []Field
	Documents []Document
	Required  []string // fields or input keys that must be present
	Confirm   []ConfirmField
	Search    []SearchField
	Order     []store.Order // applied in sequence where the column exists
	Sites     []string      // candidate columns for the site list
	Copies    []store.ColumnCopy
}

func (k *Kind) field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (k *Kind) document(name string) (Document, bool) {
	for _, d := range k.Documents {
		if d.Name == name {
			return d, true
		}
	}
	return Document{}, false
}

// Catalog returns the column additions and copies that bring the kind's
// table up to date. A column is only added when none of its candidates is
// live.
func (k *Kind) Catalog() ([]store.Migration, []store.ColumnCopy) {
	// A deprecated column never stands in for the current one; the copy
	// needs both.
	deprecated := make(map[string]struct{}, len(k.Copies))
	for _, c := range k.Copies {
		deprecated[strings.ToLower(c.Deprecated)] = struct{}{}
	}

	var migrations []store.Migration
	seen := make(map[string]struct{})
	add := func(name string, candidates []string, def string) {
		col := catalogColumn(name, candidates)
		key := strings.ToLower(col)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		var alternates []string
		for _, c := range candidates {
			if _, old := deprecated[strings.ToLower(c)]; c != col && !old {
				alternates = append(alternates, c)
			}
		}
		if def == "" {
			def = "TEXT"
		}
		migrations = append(migrations, store.Migration{Table: k.Table, Column: col, Def: def, Alternates: alternates})
	}
	for _, f := range k.Fields {
		add(f.Name, f.candidates(), f.Def)
	}
	for _, d := range k.Documents {
		add(d.Name, d.candidates(), "TEXT")
	}

	copies := make([]store.ColumnCopy, len(k.Copies))
	for i, c := range k.Copies {
		c.Table = k.Table
		copies[i] = c
	}
	return migrations, copies
}

// The current column is the logical name when it is a candidate, otherwise
// the first candidate.
func catalogColumn(name string, candidates []string) string {
	for _, c := range candidates {
		if c == name {
			return c
		}
	}
	return candidates[0]
}

// Value is one present value of a Record with its candidate columns.
type Value struct {
	Name     string
	Columns  []string
	Value    any
	Document bool
}

// Record is the canonical form of one submission. It holds only present
// values and is independent of any table version.
type Record struct {
	Kind   *Kind
	Values []Value
}

// Build validates required inputs and runs every codec and builder. Parse
// failures are MalformedInputError and happen before any database access.
func Build(kind *Kind, in Input) (*Record, error) {
	for _, name := range kind.Required {
		keys := []string{name}
		if f, ok := kind.field(name); ok {
			keys = f.keys()
		}
		if !in.Has(keys...) {
			return nil, &codec.MalformedInputError{Field: name, Reason: "required"}
		}
	}

	rec := &Record{Kind: kind}
	for _, f := range kind.Fields {
		v, ok, err := f.value(in)
		if err != nil {
			return nil, err
		}
		if ok {
			rec.Values = append(rec.Values, Value{Name: f.Name, Columns: f.candidates(), Value: v})
		}
	}
	for _, d := range kind.Documents {
		v, err := d.Build(in)
		if err != nil {
			return nil, err
		}
		if v != nil {
			rec.Values = append(rec.Values, Value{Name: d.Name, Columns: d.candidates(), Value: v, Document: true})
		}
	}
	return rec, nil
}

// Get returns the built value of a field or document.
func (r *Record) Get(name string) (any, bool) {
	for _, v := range r.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Stage binds the record to the live columns of table. Values without a
// live column are reported as mismatches and skipped. Documents are encoded
// as JSON text.
func (r *Record) Stage(table string, cols store.ColumnSet) (store.Staged, []SchemaMismatch, error) {
	resolver := NewResolver(table, cols)
	var staged store.Staged
	used := make(map[string]string)

	for _, v := range r.Values {
		col, ok := resolver.Resolve(v.Name, v.Columns)
		if !ok {
			continue
		}
		key := strings.ToLower(col)
		if prev, dup := used[key]; dup {
			logging.MappingDebug("%s and %s both resolve to %s.%s; keeping %s", prev, v.Name, table, col, prev)
			continue
		}
		used[key] = v.Name

		value := v.Value
		if v.Document {
			b, err := json.Marshal(value)
			if err != nil {
				return store.Staged{}, nil, fmt.Errorf("encode %s: %w", v.Name, err)
			}
			value = string(b)
		}
		staged.Assignments = append(staged.Assignments, store.Assignment{Column: col, Value: value})
	}

	for _, c := range r.Kind.Confirm {
		if col, ok := Resolve(c.Columns, cols); ok {
			staged.Confirm = append(staged.Confirm, store.Confirm{Label: c.Label, Column: col})
		}
	}
	return staged, resolver.Mismatches(), nil
}

// plan adapts a Record to store.Plan and keeps the mismatches of the last
// staging.
type plan struct {
	rec        *Record
	table      string
	mismatches []SchemaMismatch
}

func (p *plan) Stage(cols store.ColumnSet) (store.Staged, error) {
	staged, mismatches, err := p.rec.Stage(p.table, cols)
	p.mismatches = mismatches
	return staged, err
}
