package domain

import (
	"sort"
	"time"
)

// Slot is one bookable window, expressed both in the coach zone and in UTC.
type Slot struct {
	StartLocal time.Time
	EndLocal   time.Time
	StartUTC   time.Time
	EndUTC     time.Time
}

func newSlot(span Interval, loc *time.Location) Slot {
	return Slot{
		StartLocal: span.Start.In(loc),
		EndLocal:   span.End.In(loc),
		StartUTC:   span.Start.UTC(),
		EndUTC:     span.End.UTC(),
	}
}

// DayPlan gathers everything needed to materialize one local day of a coach's agenda.
type DayPlan struct {
	Day        time.Time
	Location   *time.Location
	Duration   time.Duration
	Rules      []AvailabilityRule
	Exceptions []AvailabilityException
	Bookings   []Booking
}

type slotSource struct {
	window Interval
	step   time.Duration
}

// Slots expands rule and extra windows into fixed-length candidates and drops
// the ones that collide with a live booking or a blocked exception. Rules that
// overlap each other may yield duplicate slots; they are not merged.
func (p DayPlan) Slots() []Slot {
	if p.Duration <= 0 {
		return nil
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}

	var busy []Interval
	for _, b := range p.Bookings {
		if b.Live() {
			busy = append(busy, b.Span())
		}
	}

	var sources []slotSource
	weekday := ISOWeekday(p.Day)
	for _, r := range p.Rules {
		if r.Weekday != weekday || !r.AppliesOn(p.Day) {
			continue
		}
		sources = append(sources, slotSource{window: r.Window(p.Day, loc), step: r.Step(p.Duration)})
	}
	for _, e := range p.Exceptions {
		switch e.Kind {
		case ExceptionKindBlocked:
			busy = append(busy, e.Span())
		case ExceptionKindExtra:
			startLocal, endLocal := e.StartAt.In(loc), e.EndAt.In(loc)
			if !SameDate(startLocal, p.Day) && !SameDate(endLocal, p.Day) {
				continue
			}
			sources = append(sources, slotSource{window: e.Span(), step: p.Duration})
		}
	}

	var slots []Slot
	for _, src := range sources {
		for cur := src.window.Start; !cur.Add(p.Duration).After(src.window.End); cur = cur.Add(src.step) {
			span := NewInterval(cur, p.Duration)
			if span.OverlapsAny(busy) {
				continue
			}
			slots = append(slots, newSlot(span, loc))
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartUTC.Before(slots[j].StartUTC)
	})
	return slots
}
