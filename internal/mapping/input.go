// Package mapping turns flat form submissions into write plans for the
// mooring record tables.
//
// Each record kind is a declarative table of scalar Fields and JSON
// Documents. A field names the input keys it reads (the current form key
// first, then legacy import headers) and the candidate columns it may bind
// to, in priority order. Nothing is resolved until a write runs against the
// live schema, so the same Record can be staged against any table version.
package mapping

import (
	"strconv"

	"moorlog/internal/codec"
)

// Input is one form submission keyed by input name. Values are whatever the
// form layer produced: strings, numbers, bools, dates or nil.
type Input map[string]any

// Lookup returns the first present value among keys.
func (in Input) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := in[k]; ok && codec.Present(v) {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether any of keys carries a present value.
func (in Input) Has(keys ...string) bool {
	_, ok := in.Lookup(keys...)
	return ok
}

// Text returns the first present value among keys as trimmed text.
func (in Input) Text(keys ...string) string {
	v, _ := in.Lookup(keys...)
	return codec.Text(v)
}

// Serial returns the first present value among keys as a normalized serial
// number.
func (in Input) Serial(keys ...string) string {
	v, ok := in.Lookup(keys...)
	if !ok {
		return ""
	}
	return codec.NormalizeSerial(v)
}

func indexed(prefix string, i int) string {
	return prefix + "_" + strconv.Itoa(i)
}
