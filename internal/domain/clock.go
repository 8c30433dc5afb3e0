package domain

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// DefaultTimezone is used when a coach has no usable timezone and none was configured.
const DefaultTimezone = "Europe/Madrid"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// LoadLocation resolves an IANA zone name. Empty or unknown names fall back to
// the given location instead of failing.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	name = strings.TrimSpace(name)
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// ParseDate parses a YYYY-MM-DD calendar date. The result is midnight UTC and
// only its year, month and day are meaningful.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, validationError("day must be a YYYY-MM-DD date")
	}
	return d, nil
}

// ParseInstant parses an RFC 3339 timestamp. Timestamps without an offset are
// taken as UTC. The result is always in UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationError("timestamp must be RFC 3339")
}

// CivilDate returns the calendar date of t in its own location, as midnight UTC.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ISOWeekday numbers days Monday=1 through Sunday=7.
func ISOWeekday(day time.Time) int16 {
	wd := day.Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int16(wd)
}

// DayBoundsUTC returns the UTC instants of local midnight on day and of the
// following local midnight. Across DST changes the span is not 24h.
func DayBoundsUTC(day time.Time, loc *time.Location) Interval {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return Interval{Start: start.UTC(), End: end.UTC()}
}

// ISOWeekBounds returns the Monday and Sunday of the ISO week containing day.
func ISOWeekBounds(day time.Time) (time.Time, time.Time) {
	d := CivilDate(day)
	monday := d.AddDate(0, 0, -int(ISOWeekday(d)-1))
	return monday, monday.AddDate(0, 0, 6)
}
