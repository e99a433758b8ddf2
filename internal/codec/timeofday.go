package codec

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	day     = 24 * 60 * 60
	halfDay = day / 2
)

// secondsOfDay parses HH:MM:SS or HH:MM.
func secondsOfDay(s string) (int, error) {
	raw := s
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, malformed("", raw, "expected HH:MM:SS")
	}

	limits := []int{23, 59, 59}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > limits[i] {
			return 0, malformed("", raw, "expected HH:MM:SS")
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}

func formatSeconds(total int) string {
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// NormalizeTimeOfDay turns HH:MM into HH:MM:SS. Unparseable input is
// returned trimmed and unchanged.
func NormalizeTimeOfDay(s string) string {
	secs, err := secondsOfDay(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return formatSeconds(secs)
}

// TrimToMinutes renders a time of day as HH:MM, dropping seconds.
func TrimToMinutes(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return strings.TrimSpace(s)
	}
	h := strings.TrimSpace(parts[0])
	m := strings.TrimSpace(parts[1])
	if len(m) > 2 {
		m = m[:2]
	}
	return pad2(h) + ":" + pad2(m)
}

func pad2(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// Elapsed returns end minus start as HH:MM:SS, wrapping past midnight when
// end is earlier than start.
func Elapsed(start, end string) (string, error) {
	s, err := secondsOfDay(start)
	if err != nil {
		return "", WithField(err, "start_time")
	}
	e, err := secondsOfDay(end)
	if err != nil {
		return "", WithField(err, "end_time")
	}
	if e < s {
		e += day
	}
	return formatSeconds(e - s), nil
}
