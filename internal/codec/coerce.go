package codec

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeSerial drops the ".0" left on serial numbers that passed through
// a float, so "11153.0" becomes "11153". Other serials are only trimmed.
func NormalizeSerial(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
	case float32:
		return NormalizeSerial(float64(x))
	}

	s := Text(v)
	if !strings.Contains(s, ".") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return s
	}
	return strconv.FormatFloat(f, 'f', 0, 64)
}

// CoerceNumber returns v as a float64 when it parses as a finite number,
// otherwise the trimmed text. It never drops a value.
func CoerceNumber(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	}
	s := Text(v)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}

// CoerceInt returns v as an int64 when it is integral, otherwise the
// trimmed text.
func CoerceInt(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x)
		}
	}
	s := Text(v)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return s
}

// ParseNumber parses v as a float, reporting false for blank or
// non-numeric input.
func ParseNumber(v any) (float64, bool) {
	if !Present(v) {
		return 0, false
	}
	f, ok := CoerceNumber(v).(float64)
	return f, ok
}
