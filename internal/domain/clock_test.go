package domain

import (
	"errors"
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load %s: %v", name, err)
	}
	return loc
}

func TestDayBoundsUTC(t *testing.T) {
	madrid := mustLocation(t, "Europe/Madrid")

	tests := []struct {
		name      string
		day       string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "summer time",
			day:       "2026-10-14",
			wantStart: time.Date(2026, 10, 13, 22, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 10, 14, 22, 0, 0, 0, time.UTC),
		},
		{
			name:      "spring forward is 23h",
			day:       "2026-03-29",
			wantStart: time.Date(2026, 3, 28, 23, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 29, 22, 0, 0, 0, time.UTC),
		},
		{
			name:      "fall back is 25h",
			day:       "2026-10-25",
			wantStart: time.Date(2026, 10, 24, 22, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, err := ParseDate(tt.day)
			if err != nil {
				t.Fatalf("ParseDate: %v", err)
			}
			got := DayBoundsUTC(day, madrid)
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Fatalf("got [%s, %s), want [%s, %s)", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "2026-13-01", "14/10/2026", "2026-10-14T10:00:00Z"} {
		_, err := ParseDate(in)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("ParseDate(%q): expected ValidationError, got %v", in, err)
		}
	}
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2026-10-14T09:00:00+02:00")
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if want := time.Date(2026, 10, 14, 7, 0, 0, 0, time.UTC); !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("got %s, want %s in UTC", got, want)
	}

	naive, err := ParseInstant("2026-10-14T09:00:00")
	if err != nil {
		t.Fatalf("ParseInstant naive: %v", err)
	}
	if want := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC); !naive.Equal(want) {
		t.Fatalf("naive: got %s, want %s", naive, want)
	}

	if _, err := ParseInstant("tomorrow"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestISOWeekday(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got, want := ISOWeekday(monday.AddDate(0, 0, i)), int16(i+1); got != want {
			t.Fatalf("day %d: got %d, want %d", i, got, want)
		}
	}
}

func TestISOWeekBounds(t *testing.T) {
	mon, sun := ISOWeekBounds(time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC))
	if !mon.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monday = %s", mon)
	}
	if !sun.Equal(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("sunday = %s", sun)
	}
}

func TestLoadLocation_FailSoft(t *testing.T) {
	lisbon := mustLocation(t, "Europe/Lisbon")

	if got := LoadLocation("Not/AZone", lisbon); got != lisbon {
		t.Fatalf("unknown zone: got %s", got)
	}
	if got := LoadLocation("", lisbon); got != lisbon {
		t.Fatalf("empty zone: got %s", got)
	}
	if got := LoadLocation(" America/New_York ", lisbon); got.String() != "America/New_York" {
		t.Fatalf("named zone: got %s", got)
	}
	if got := LoadLocation("", nil); got.String() != DefaultTimezone {
		t.Fatalf("no fallback: got %s", got)
	}
}
