package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*([smh])\s*$`)

// ParseKeepAliveDuration parses a duration string of the shape "35m", "2h",
// "30s" into an absolute time.Duration. It is intentionally narrow: it does
// not accept compound durations or fractional amounts, matching the
// keep_alive strings the catalog stores verbatim.
func ParseKeepAliveDuration(value string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: want a number followed by s, m or h", value)
	}

	amount, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}

	var unit time.Duration
	switch m[2] {
	case "s", "S":
		unit = time.Second
	case "m", "M":
		unit = time.Minute
	case "h", "H":
		unit = time.Hour
	}

	return time.Duration(amount) * unit, nil
}
