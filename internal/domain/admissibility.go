package domain

import "time"

// SlotAllowed reports whether span lies entirely inside one applicable rule
// window or one extra exception. Spans crossing local midnight are never
// allowed. Blocked exceptions and bookings are not considered here.
func SlotAllowed(loc *time.Location, rules []AvailabilityRule, exceptions []AvailabilityException, span Interval) bool {
	if loc == nil {
		loc = time.UTC
	}
	startLocal, endLocal := span.Start.In(loc), span.End.In(loc)
	if !SameDate(startLocal, endLocal) {
		return false
	}
	day := CivilDate(startLocal)
	weekday := ISOWeekday(day)
	for _, r := range rules {
		if r.Weekday != weekday || !r.AppliesOn(day) {
			continue
		}
		if r.Window(day, loc).Contains(span) {
			return true
		}
	}
	for _, e := range exceptions {
		if e.Kind == ExceptionKindExtra && e.Span().Contains(span) {
			return true
		}
	}
	return false
}
