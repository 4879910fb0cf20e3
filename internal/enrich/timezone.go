package enrich

import (
	"fmt"
	"strings"
	"time"
)

// legacyOffsets maps the fixed-offset timezone names accepted by older
// configurations to their offset in minutes. IANA zone names (anything with a
// "/") are preferred since they follow DST automatically.
var legacyOffsets = map[string]int{
	"UTC":       0,
	"UTC-12:00": -12 * 60,
	"UTC-11:00": -11 * 60,
	"UTC-10:00": -10 * 60,
	"UTC-09:00": -9 * 60,
	"UTC-08:00": -8 * 60,
	"UTC-07:00": -7 * 60,
	"UTC-06:00": -6 * 60,
	"UTC-05:00": -5 * 60,
	"UTC-04:00": -4 * 60,
	"UTC-03:00": -3 * 60,
	"UTC-02:00": -2 * 60,
	"UTC-01:00": -1 * 60,
	"UTC+01:00": 1 * 60,
	"UTC+02:00": 2 * 60,
	"UTC+03:00": 3 * 60,
	"UTC+03:30": 3*60 + 30,
	"UTC+04:00": 4 * 60,
	"UTC+04:30": 4*60 + 30,
	"UTC+05:00": 5 * 60,
	"UTC+05:30": 5*60 + 30,
	"UTC+05:45": 5*60 + 45,
	"UTC+06:00": 6 * 60,
	"UTC+06:30": 6*60 + 30,
	"UTC+07:00": 7 * 60,
	"UTC+08:00": 8 * 60,
	"UTC+08:45": 8*60 + 45,
	"UTC+09:00": 9 * 60,
	"UTC+09:30": 9*60 + 30,
	"UTC+10:00": 10 * 60,
	"UTC+10:30": 10*60 + 30,
	"UTC+11:00": 11 * 60,
	"UTC+12:00": 12 * 60,
	"UTC+12:45": 12*60 + 45,
	"UTC+13:00": 13 * 60,
	"UTC+14:00": 14 * 60,
}

// ResolveLocation turns a configured timezone string into a *time.Location.
// IANA names resolve through the zone database and track DST at each
// record's own instant; legacy "UTC±HH:MM" names resolve to fixed offsets.
func ResolveLocation(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	if strings.Contains(tz, "/") {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
		}
		return loc, nil
	}
	minutes, ok := legacyOffsets[tz]
	if !ok {
		return nil, fmt.Errorf("unknown timezone offset %q", tz)
	}
	return time.FixedZone(tz, minutes*60), nil
}

// timestampLayouts are the formats the API has been observed to emit, tried
// in order. Values without zone information are treated as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an API timestamp and normalizes it to UTC. The
// second return is false when the value is empty or matches no known layout.
func ParseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// hourBucket truncates a local time to the top of its hour, preserving the
// zone offset in effect at that instant.
func hourBucket(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// dayBucket truncates a local time to local midnight.
func dayBucket(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// formatCompositeTime renders a local time the way the downstream composite
// display key expects: "D/M/YYYY H:MM:SS AM" with no zero padding on day,
// month, or hour.
func formatCompositeTime(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d %s", t.Day(), int(t.Month()), t.Year(), t.Format("3:04:05 PM"))
}
