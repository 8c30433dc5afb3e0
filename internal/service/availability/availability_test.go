package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
	"padelagenda/backend/internal/store/memory"
)

// 2026-10-14 is a Wednesday; Madrid is on UTC+2.
var wednesday = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	coach domain.Coach
	svc   *Service
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	s := memory.New()
	coach, err := s.SeedCoach(context.Background(), "coach-1", "Carla", "Europe/Madrid")
	if err != nil {
		t.Fatalf("SeedCoach: %v", err)
	}
	svc := NewService(s, domain.ClockFunc(func() time.Time { return now }), Config{WeekConcurrency: 3})
	return &fixture{store: s, coach: coach, svc: svc}
}

func (f *fixture) tx(t *testing.T, fn func(ctx context.Context, tx store.AgendaTx) error) {
	t.Helper()
	if err := f.store.InCoachTransaction(context.Background(), f.coach.ID, fn); err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func (f *fixture) addRule(t *testing.T, weekday int16, start, end string, slotMinutes int) {
	t.Helper()
	f.tx(t, func(ctx context.Context, tx store.AgendaTx) error {
		_, err := tx.CreateRule(ctx, domain.AvailabilityRule{
			CoachID:     f.coach.ID,
			Weekday:     weekday,
			StartTime:   domain.MustTimeOfDay(start),
			EndTime:     domain.MustTimeOfDay(end),
			SlotMinutes: slotMinutes,
		})
		return err
	})
}

func (f *fixture) addException(t *testing.T, kind domain.ExceptionKind, start, end time.Time) {
	t.Helper()
	f.tx(t, func(ctx context.Context, tx store.AgendaTx) error {
		_, err := tx.CreateException(ctx, domain.AvailabilityException{CoachID: f.coach.ID, Kind: kind, StartAt: start, EndAt: end})
		return err
	})
}

func startsUTC(slots []domain.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartUTC.Format("15:04"))
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestResolveDay_MadridRoundTrip(t *testing.T) {
	f := newFixture(t, wednesday)
	f.addRule(t, 3, "09:00", "11:00", 30)

	ctx := context.Background()
	var thirty uuid.UUID
	f.tx(t, func(ctx context.Context, tx store.AgendaTx) error {
		svc, err := tx.UpsertService(ctx, domain.Service{Name: "Half hour", DurationMinutes: 30, Active: true})
		thirty = svc.ID
		return err
	})

	day, err := f.svc.ResolveDay(ctx, DayQuery{CoachID: f.coach.ID, Day: wednesday, ServiceID: &thirty})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if day.Timezone != "Europe/Madrid" || day.DurationMinutes != 30 {
		t.Fatalf("day = %+v", day)
	}
	if got, want := startsUTC(day.Slots), []string{"07:00", "07:30", "08:00", "08:30"}; !sameStrings(got, want) {
		t.Fatalf("30 min slots = %v, want %v", got, want)
	}

	hour, err := f.svc.ResolveDay(ctx, DayQuery{CoachID: f.coach.ID, Day: wednesday})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	// A 60 minute lesson stepping every 30 minutes.
	if got, want := startsUTC(hour.Slots), []string{"07:00", "07:30", "08:00"}; !sameStrings(got, want) {
		t.Fatalf("60 min slots = %v, want %v", got, want)
	}
}

func TestResolveDay_HourlyRule(t *testing.T) {
	f := newFixture(t, wednesday)
	f.addRule(t, 3, "09:00", "11:00", 60)

	day, err := f.svc.ResolveDay(context.Background(), DayQuery{CoachID: f.coach.ID, Day: wednesday})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if got, want := startsUTC(day.Slots), []string{"07:00", "08:00"}; !sameStrings(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestResolveDay_BlockedExceptionRemovesSlot(t *testing.T) {
	f := newFixture(t, wednesday)
	f.addRule(t, 3, "09:00", "11:00", 30)
	// 10:00-10:30 Madrid.
	f.addException(t, domain.ExceptionKindBlocked, wednesday.Add(8*time.Hour), wednesday.Add(8*time.Hour+30*time.Minute))

	ctx := context.Background()
	var thirty uuid.UUID
	f.tx(t, func(ctx context.Context, tx store.AgendaTx) error {
		svc, err := tx.UpsertService(ctx, domain.Service{Name: "Half hour", DurationMinutes: 30, Active: true})
		thirty = svc.ID
		return err
	})

	day, err := f.svc.ResolveDay(ctx, DayQuery{CoachID: f.coach.ID, Day: wednesday, ServiceID: &thirty})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	for _, s := range day.Slots {
		if s.StartLocal.Format("15:04") == "10:00" {
			t.Fatalf("10:00 slot should be blocked: %v", startsUTC(day.Slots))
		}
	}
	if len(day.Slots) != 3 {
		t.Fatalf("slots = %v", startsUTC(day.Slots))
	}
}

func TestResolveDay_InactiveServiceFallsBackToCoachDefault(t *testing.T) {
	f := newFixture(t, wednesday)
	f.addRule(t, 3, "09:00", "11:00", 60)

	var inactive uuid.UUID
	f.tx(t, func(ctx context.Context, tx store.AgendaTx) error {
		svc, err := tx.UpsertService(ctx, domain.Service{Name: "Retired", DurationMinutes: 15, Active: false})
		inactive = svc.ID
		return err
	})
	unknown := uuid.MustParse("00000000-0000-0000-0000-00000000dead")

	for _, id := range []uuid.UUID{inactive, unknown} {
		day, err := f.svc.ResolveDay(context.Background(), DayQuery{CoachID: f.coach.ID, Day: wednesday, ServiceID: &id})
		if err != nil {
			t.Fatalf("ResolveDay: %v", err)
		}
		if day.DurationMinutes != 60 {
			t.Fatalf("duration = %d, want 60", day.DurationMinutes)
		}
	}
}

func TestResolveDay_UnknownCoach(t *testing.T) {
	f := newFixture(t, wednesday)
	_, err := f.svc.ResolveDay(context.Background(), DayQuery{CoachID: uuid.New(), Day: wednesday})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveDay_ExtraWindow(t *testing.T) {
	f := newFixture(t, wednesday)
	// 18:00-20:00 Madrid, no recurring rules at all.
	f.addException(t, domain.ExceptionKindExtra, wednesday.Add(16*time.Hour), wednesday.Add(18*time.Hour))

	day, err := f.svc.ResolveDay(context.Background(), DayQuery{CoachID: f.coach.ID, Day: wednesday})
	if err != nil {
		t.Fatalf("ResolveDay: %v", err)
	}
	if got, want := startsUTC(day.Slots), []string{"16:00", "17:00"}; !sameStrings(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestIsSlotAllowed(t *testing.T) {
	f := newFixture(t, wednesday)
	f.addRule(t, 3, "09:00", "11:00", 30)
	f.addException(t, domain.ExceptionKindBlocked, wednesday.Add(7*time.Hour), wednesday.Add(9*time.Hour))
	ctx := context.Background()

	ok, err := f.svc.IsSlotAllowed(ctx, f.coach.ID, wednesday.Add(7*time.Hour), wednesday.Add(8*time.Hour))
	if err != nil || !ok {
		t.Fatalf("inside window: ok=%v err=%v", ok, err)
	}
	ok, err = f.svc.IsSlotAllowed(ctx, f.coach.ID, wednesday.Add(8*time.Hour+30*time.Minute), wednesday.Add(9*time.Hour+30*time.Minute))
	if err != nil || ok {
		t.Fatalf("past window end: ok=%v err=%v", ok, err)
	}

	_, err = f.svc.IsSlotAllowed(ctx, f.coach.ID, wednesday.Add(8*time.Hour), wednesday.Add(7*time.Hour))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("inverted span err = %v, want ValidationError", err)
	}
}
