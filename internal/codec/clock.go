package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock errors are stored as a signed base-100 integer: minutes*100+seconds.
// 30 is 0:30, 240 is 2:40 and 1005 is 10:05. This is not a count of seconds.

// FormatClockError renders a stored clock error as [-]M:SS.
func FormatClockError(v int) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d:%02d", sign, v/100, v%100)
}

// ParseClockError converts [-]M:SS, or an already-encoded integer, to the
// stored form.
func ParseClockError(s string) (int, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, malformed("clock_error", raw, "empty")
	}

	sign := 1
	body := s
	if strings.HasPrefix(body, "-") {
		sign = -1
		body = body[1:]
	} else if strings.HasPrefix(body, "+") {
		body = body[1:]
	}

	mins, secs, found := strings.Cut(body, ":")
	if !found {
		n, err := strconv.Atoi(body)
		if err != nil || n < 0 {
			return 0, malformed("clock_error", raw, "expected M:SS")
		}
		return sign * n, nil
	}

	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, malformed("clock_error", raw, "invalid minutes")
	}
	if len(secs) != 2 {
		return 0, malformed("clock_error", raw, "seconds must have two digits")
	}
	sec, err := strconv.Atoi(secs)
	if err != nil || sec < 0 || sec > 59 {
		return 0, malformed("clock_error", raw, "seconds out of range")
	}
	return sign * (m*100 + sec), nil
}

// ClockErrorFromTimes computes actual minus instrument time as [-]M:SS.
// A difference of more than half a day is treated as a midnight rollover.
func ClockErrorFromTimes(actual, instrument string) (string, error) {
	a, err := secondsOfDay(actual)
	if err != nil {
		return "", WithField(err, "actual_time")
	}
	i, err := secondsOfDay(instrument)
	if err != nil {
		return "", WithField(err, "inst_time")
	}

	diff := a - i
	switch {
	case diff < -halfDay:
		diff += day
	case diff > halfDay:
		diff -= day
	}

	sign := ""
	if diff < 0 {
		sign = "-"
		diff = -diff
	}
	return fmt.Sprintf("%s%d:%02d", sign, diff/60, diff%60), nil
}
