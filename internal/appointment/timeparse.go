package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseInstant reads RFC3339 as an absolute instant and anything without an
// offset as wall time in loc.
func parseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

var hhmmPattern = regexp.MustCompile(`^(\d{1,2})(?::?(\d{1,2}))?$`)

// normalizeClock accepts "10", "10:0", "1030" or "10:30" and clamps to 23:59.
func normalizeClock(raw string) (hour, minute int, ok bool) {
	m := hhmmPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	return min(hour, 23), min(minute, 59), true
}
