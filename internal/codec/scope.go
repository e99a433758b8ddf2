package codec

import "fmt"

// FinalScope is the mooring scope ratio: all line paid out over the water
// depth. ok is false when depth is not positive.
func FinalScope(hardware, wire, nylonBelowRelease, spools, depth float64) (scope float64, ok bool) {
	if depth <= 0 {
		return 0, false
	}
	return (hardware + wire + nylonBelowRelease + spools) / depth, true
}

// FormatScope renders a scope to three significant digits.
func FormatScope(scope float64) string {
	return fmt.Sprintf("%.3g", scope)
}
