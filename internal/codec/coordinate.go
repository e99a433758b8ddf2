package codec

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Axis selects the valid range and hemisphere letters for a coordinate.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

func (a Axis) String() string {
	if a == Longitude {
		return "longitude"
	}
	return "latitude"
}

var degMinPattern = regexp.MustCompile(`(?i)^(\d+)\s+(\d+\.?\d*)\s*([NSEW])$`)

// ParseLatitude parses a latitude in decimal degrees or "D M.m H" form.
func ParseLatitude(s string) (float64, error) { return ParseCoordinate(s, Latitude) }

// ParseLongitude parses a longitude in decimal degrees or "D M.m H" form.
func ParseLongitude(s string) (float64, error) { return ParseCoordinate(s, Longitude) }

// ParseCoordinate converts "37 46.5 N" or "-122.42" to signed decimal
// degrees and validates the range for axis.
func ParseCoordinate(s string, axis Axis) (float64, error) {
	raw := s
	s = strings.TrimSpace(s)
	field := axis.String()

	var deg float64
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		deg = f
	} else {
		m := degMinPattern.FindStringSubmatch(s)
		if m == nil {
			return 0, malformed(field, raw, "expected decimal degrees or D M.m H")
		}
		d, _ := strconv.ParseFloat(m[1], 64)
		mins, _ := strconv.ParseFloat(m[2], 64)
		deg = d + mins/60

		switch strings.ToUpper(m[3]) {
		case "N", "S":
			if axis != Latitude {
				return 0, malformed(field, raw, "hemisphere N/S is not a longitude")
			}
		case "E", "W":
			if axis != Longitude {
				return 0, malformed(field, raw, "hemisphere E/W is not a latitude")
			}
		}
		if h := strings.ToUpper(m[3]); h == "S" || h == "W" {
			deg = -deg
		}
	}

	limit := 90.0
	if axis == Longitude {
		limit = 180.0
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) || deg < -limit || deg > limit {
		return 0, malformed(field, raw, "out of range")
	}
	return deg, nil
}
