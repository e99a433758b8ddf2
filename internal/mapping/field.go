package mapping

import (
	"moorlog/internal/codec"
)

// Codec converts a present raw input into the value that is stored.
type Codec func(raw any) (any, error)

// Stock codecs.
var (
	TextCodec   Codec = func(raw any) (any, error) { return codec.Text(raw), nil }
	SerialCodec Codec = func(raw any) (any, error) { return codec.NormalizeSerial(raw), nil }
	NumberCodec Codec = func(raw any) (any, error) { return codec.CoerceNumber(raw), nil }
	IntCodec    Codec = func(raw any) (any, error) { return codec.CoerceInt(raw), nil }
	TimeCodec   Codec = func(raw any) (any, error) { return codec.NormalizeTimeOfDay(codec.Text(raw)), nil }

	// ClockCodec stores [-]M:SS as the base-100 clock error integer.
	ClockCodec Codec = func(raw any) (any, error) {
		if n, ok := raw.(int); ok {
			return n, nil
		}
		return codec.ParseClockError(codec.Text(raw))
	}

	// NauticalWindCodec strips the zero padding of a nautical bearing.
	NauticalWindCodec Codec = func(raw any) (any, error) { return codec.ParseWindDirection(codec.Text(raw)), nil }

	LatitudeCodec  Codec = coordinateCodec(codec.Latitude)
	LongitudeCodec Codec = coordinateCodec(codec.Longitude)
)

func coordinateCodec(axis codec.Axis) Codec {
	return func(raw any) (any, error) {
		if f, ok := raw.(float64); ok {
			raw = codec.Text(f)
		}
		return codec.ParseCoordinate(codec.Text(raw), axis)
	}
}

// Field is a flat scalar stored in a single column.
type Field struct {
	Name    string   // logical name, also the primary input key
	Inputs  []string // further accepted input keys, such as legacy import headers
	Columns []string // candidate columns in priority order; defaults to Name
	Codec   Codec    // nil stores trimmed text
	Def     string   // column definition for migrations; defaults to TEXT

	// Compute replaces the input lookup when set. A nil result is absent.
	Compute func(in Input) (any, error)
}

func (f Field) keys() []string {
	return append([]string{f.Name}, f.Inputs...)
}

func (f Field) candidates() []string {
	if len(f.Columns) == 0 {
		return []string{f.Name}
	}
	return f.Columns
}

func (f Field) value(in Input) (any, bool, error) {
	if f.Compute != nil {
		v, err := f.Compute(in)
		if err != nil {
			return nil, false, codec.WithField(err, f.Name)
		}
		return v, codec.Present(v), nil
	}
	return extract(in, f.keys(), f.Codec, nil, f.Name)
}

// extract looks up keys, runs c over the first present value, and falls back
// to fallback when nothing is present.
func extract(in Input, keys []string, c Codec, fallback func(Input) (any, error), name string) (any, bool, error) {
	raw, ok := in.Lookup(keys...)
	if !ok {
		if fallback == nil {
			return nil, false, nil
		}
		v, err := fallback(in)
		if err != nil {
			return nil, false, codec.WithField(err, name)
		}
		return v, codec.Present(v), nil
	}
	if c == nil {
		c = TextCodec
	}
	v, err := c(raw)
	if err != nil {
		return nil, false, codec.WithField(err, name)
	}
	return v, codec.Present(v), nil
}

// Shape is the empty value a document column decodes to.
type Shape int

const (
	ObjectShape Shape = iota
	ArrayShape
)

// Empty returns {} or [] for the shape.
func (s Shape) Empty() any {
	if s == ArrayShape {
		return []any{}
	}
	return map[string]any{}
}

// Document is a JSON sub-document stored in one text column.
type Document struct {
	Name    string
	Columns []string // defaults to Name
	Shape   Shape

	// Build returns the document, or nil when none of its constituents is
	// present.
	Build func(in Input) (any, error)
}

func (d Document) candidates() []string {
	if len(d.Columns) == 0 {
		return []string{d.Name}
	}
	return d.Columns
}

// Member is one key of an object document. Members with children build a
// nested object.
type Member struct {
	Key     string
	Inputs  []string
	Codec   Codec
	Members []Member

	// Default computes the value when no input is supplied.
	Default func(in Input) (any, error)
}

func member(key string, inputs ...string) Member {
	return Member{Key: key, Inputs: inputs}
}

func (m Member) as(c Codec) Member {
	m.Codec = c
	return m
}

func (m Member) orElse(fn func(in Input) (any, error)) Member {
	m.Default = fn
	return m
}

func group(key string, members ...Member) Member {
	return Member{Key: key, Members: members}
}

func objectDoc(name string, columns []string, members ...Member) Document {
	return Document{
		Name:    name,
		Columns: columns,
		Shape:   ObjectShape,
		Build: func(in Input) (any, error) {
			obj, err := buildObject(in, members)
			if err != nil || obj == nil {
				return nil, err
			}
			return obj, nil
		},
	}
}

func buildObject(in Input, members []Member) (map[string]any, error) {
	out := make(map[string]any)
	for _, m := range members {
		if len(m.Members) > 0 {
			sub, err := buildObject(in, m.Members)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				out[m.Key] = sub
			}
			continue
		}
		keys := m.Inputs
		if len(keys) == 0 {
			keys = []string{m.Key}
		}
		v, ok, err := extract(in, keys, m.Codec, m.Default, keys[0])
		if err != nil {
			return nil, err
		}
		if ok {
			out[m.Key] = v
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
