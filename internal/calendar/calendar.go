// Package calendar converts the feeds' heterogeneous timestamp encodings
// into absolute instants and derives the business calendar date in the
// US Eastern civil timezone.
package calendar

import (
	"strings"
	"time"
)

// Encodings observed across both feeds, tried in order. Layouts without a
// zone designator are interpreted as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
	"2006-01-02",
}

// ParseTimestamp interprets a raw feed timestamp. The second return value is
// false when no known encoding applies; the owning record is then excluded
// from matching but never from storage.
func ParseTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// EasternOffsetHours returns the UTC offset of US Eastern time for the UTC
// calendar date of the instant: -4 inside the daylight-saving interval
// (second Sunday of March through first Sunday of November), else -5.
// The comparison is date-granular; both feeds stamp calls with the same
// rule, so the boundary hours cancel out.
func EasternOffsetHours(instant time.Time) int {
	u := instant.UTC()
	date := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	start := nthSunday(u.Year(), time.March, 2)
	end := nthSunday(u.Year(), time.November, 1)
	if !date.Before(start) && date.Before(end) {
		return -4
	}
	return -5
}

// ToEastern re-expresses a UTC instant in the fixed Eastern zone for its
// date. The absolute instant is unchanged.
func ToEastern(instant time.Time) time.Time {
	offset := EasternOffsetHours(instant)
	name := "EST"
	if offset == -4 {
		name = "EDT"
	}
	return instant.In(time.FixedZone(name, offset*3600))
}

// CivilDate returns the YYYY-MM-DD calendar date of an instant as observed
// in Eastern time.
func CivilDate(instant time.Time) string {
	return ToEastern(instant).Format("2006-01-02")
}

// CivilDayDiff returns the absolute difference in Eastern calendar days
// between two instants.
func CivilDayDiff(a, b time.Time) int {
	da, _ := time.Parse("2006-01-02", CivilDate(a))
	db, _ := time.Parse("2006-01-02", CivilDate(b))
	diff := int(da.Sub(db).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// CivilMidnightUTC returns the UTC instant at which the given civil date
// begins in Eastern time. The date argument carries only year/month/day.
func CivilMidnightUTC(date time.Time) time.Time {
	local := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	offset := EasternOffsetHours(local)
	return local.Add(time.Duration(-offset) * time.Hour)
}

// MinuteDiff returns the absolute difference between two instants in whole
// minutes, each side truncated to the minute first so sub-minute clock skew
// between the feeds does not widen the gap.
func MinuteDiff(a, b time.Time) int {
	diff := a.Truncate(time.Minute).Sub(b.Truncate(time.Minute))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / time.Minute)
}

func nthSunday(year int, month time.Month, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}
