package service

import (
	"fmt"
	"strings"
	"time"
)

const UnknownDuration = "unknown"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CalculateDuration renders the billing period as a coarse label:
// under 31 days "N days", under 365 days "N month(s)" in 30-day units,
// otherwise "N year(s)". Missing, malformed or reversed dates give "unknown".
func CalculateDuration(start, end string) string {
	from, ok := parseTimestamp(start)
	if !ok {
		return UnknownDuration
	}
	to, ok := parseTimestamp(end)
	if !ok {
		return UnknownDuration
	}
	diff := to.Sub(from)
	if diff < 0 {
		return UnknownDuration
	}

	days := int(diff / (24 * time.Hour))
	switch {
	case days < 31:
		return fmt.Sprintf("%d days", days)
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
