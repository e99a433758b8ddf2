package store

import (
	"sort"
	"strings"
)

// ColumnSet is the immutable set of live column names of one table.
type ColumnSet struct {
	names []string
	exact map[string]struct{}
	fold  map[string]string
}

// NewColumnSet builds a set from names; duplicates are ignored.
func NewColumnSet(names ...string) ColumnSet {
	c := ColumnSet{
		exact: make(map[string]struct{}, len(names)),
		fold:  make(map[string]string, len(names)),
	}
	for _, n := range names {
		if _, ok := c.exact[n]; ok {
			continue
		}
		c.exact[n] = struct{}{}
		c.names = append(c.names, n)
		if _, ok := c.fold[strings.ToLower(n)]; !ok {
			c.fold[strings.ToLower(n)] = n
		}
	}
	sort.Strings(c.names)
	return c
}

// Has reports whether name is a live column, exactly as spelled.
func (c ColumnSet) Has(name string) bool {
	_, ok := c.exact[name]
	return ok
}

// Lookup returns the live spelling of name. SQL identifiers are
// case-insensitive, so an exact match wins and a case-folded match is the
// fallback.
func (c ColumnSet) Lookup(name string) (string, bool) {
	if c.Has(name) {
		return name, true
	}
	live, ok := c.fold[strings.ToLower(name)]
	return live, ok
}

// Names returns the column names sorted lexicographically.
func (c ColumnSet) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of columns.
func (c ColumnSet) Len() int {
	return len(c.names)
}
