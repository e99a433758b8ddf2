package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Present reports whether v carries a meaningful value.
//
// nil, nil pointers, NaN, the zero time and blank strings are absent.
// Zero numbers, "0", false and "false" are present.
func Present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []byte:
		return strings.TrimSpace(string(x)) != ""
	case float64:
		return !math.IsNaN(x)
	case float32:
		return !math.IsNaN(float64(x))
	case json.Number:
		return strings.TrimSpace(string(x)) != ""
	case time.Time:
		return !x.IsZero()
	case *string:
		return x != nil && Present(*x)
	case *float64:
		return x != nil && Present(*x)
	case *time.Time:
		return x != nil && Present(*x)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Present(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return true
}

// Text renders a present value as trimmed text. Dates render as 2006-01-02.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case *string:
		if x == nil {
			return ""
		}
		return strings.TrimSpace(*x)
	case time.Time:
		return x.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return strings.TrimSpace(x.String())
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
