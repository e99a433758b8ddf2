// Package codec converts between hand-entered form text and the encodings
// stored in the mooring tables.
package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedInput is matched by every MalformedInputError.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError reports a value that failed to parse.
type MalformedInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed input %q: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("malformed %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(field, value, reason string) error {
	return &MalformedInputError{Field: field, Value: value, Reason: reason}
}

// WithField returns err with its field name set when it is a
// MalformedInputError that has none.
func WithField(err error, field string) error {
	var m *MalformedInputError
	if errors.As(err, &m) && m.Field == "" {
		return &MalformedInputError{Field: field, Value: m.Value, Reason: m.Reason}
	}
	return err
}
