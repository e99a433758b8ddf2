package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatWindDirection renders degrees in [0, 360] as a three-digit nautical
// string ("9" becomes "009"). Anything else is returned unchanged.
func FormatWindDirection(raw string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 360 {
		return raw
	}
	return fmt.Sprintf("%03d", int(f))
}

// ParseWindDirection strips nautical zero padding ("009" becomes "9").
// Anything that is not an integer is returned unchanged.
func ParseWindDirection(raw string) string {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return strconv.Itoa(n)
}
