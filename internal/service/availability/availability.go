// Package availability turns a coach's rules, exceptions and bookings into
// bookable slots.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

const tracerName = "padelagenda/backend/internal/service/availability"

type Repository interface {
	store.AvailabilityReader
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
}

type Config struct {
	// DefaultLocation applies to coaches whose timezone is empty or unknown.
	DefaultLocation *time.Location
	MaxSlotsPerDay  int
	MaxTotalSlots   int
	// WeekConcurrency bounds how many days of a week resolve at once.
	WeekConcurrency int
}

type Service struct {
	repo   Repository
	clock  domain.Clock
	cfg    Config
	tracer trace.Tracer
}

func NewService(repo Repository, clock domain.Clock, cfg Config) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = domain.LoadLocation(domain.DefaultTimezone, time.UTC)
	}
	if cfg.MaxSlotsPerDay < 1 {
		cfg.MaxSlotsPerDay = DefaultMaxSlotsPerDay
	}
	if cfg.MaxTotalSlots < 1 {
		cfg.MaxTotalSlots = DefaultMaxTotalSlots
	}
	if cfg.WeekConcurrency < 1 {
		cfg.WeekConcurrency = 1
	}
	return &Service{repo: repo, clock: clock, cfg: cfg, tracer: otel.Tracer(tracerName)}
}

type DayQuery struct {
	CoachID   uuid.UUID
	Day       time.Time
	ServiceID *uuid.UUID
}

type DayAvailability struct {
	CoachID         uuid.UUID
	Day             time.Time
	Timezone        string
	DurationMinutes int
	Slots           []domain.Slot
}

func (s *Service) ResolveDay(ctx context.Context, q DayQuery) (DayAvailability, error) {
	ctx, span := s.tracer.Start(ctx, "availability.ResolveDay", trace.WithAttributes(
		attribute.String("coach.id", q.CoachID.String()),
		attribute.String("day", q.Day.Format(domain.DateLayout)),
	))
	defer span.End()

	out, err := s.resolveDay(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve day failed")
		return DayAvailability{}, err
	}
	span.SetAttributes(attribute.Int("slots", len(out.Slots)))
	return out, nil
}

func (s *Service) resolveDay(ctx context.Context, q DayQuery) (DayAvailability, error) {
	coach, err := s.repo.GetCoach(ctx, q.CoachID)
	if err != nil {
		return DayAvailability{}, err
	}
	duration, err := s.lessonDuration(ctx, coach, q.ServiceID)
	if err != nil {
		return DayAvailability{}, err
	}
	return s.dayFor(ctx, coach, s.location(coach), domain.CivilDate(q.Day), duration)
}

func (s *Service) location(coach domain.Coach) *time.Location {
	return domain.LoadLocation(coach.Timezone, s.cfg.DefaultLocation)
}

// lessonDuration prefers an active service's duration over the coach default.
// Unknown or inactive services fall back silently.
func (s *Service) lessonDuration(ctx context.Context, coach domain.Coach, serviceID *uuid.UUID) (time.Duration, error) {
	if serviceID != nil && *serviceID != uuid.Nil {
		svc, err := s.repo.GetService(ctx, *serviceID)
		switch {
		case err == nil:
			if svc.Active && svc.DurationMinutes > 0 {
				return time.Duration(svc.DurationMinutes) * time.Minute, nil
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return 0, err
		}
	}
	return coach.LessonDuration(), nil
}

func (s *Service) dayFor(ctx context.Context, coach domain.Coach, loc *time.Location, day time.Time, duration time.Duration) (DayAvailability, error) {
	rules, err := s.repo.ListRules(ctx, coach.ID, domain.ISOWeekday(day), day)
	if err != nil {
		return DayAvailability{}, err
	}

	window := domain.DayBoundsUTC(day, loc)
	exceptions, err := s.repo.ListExceptions(ctx, coach.ID, window)
	if err != nil {
		return DayAvailability{}, err
	}
	// Extra windows may run past either midnight; conflicts are looked up
	// across their full span.
	if wide := widen(window, exceptions); !wide.Start.Equal(window.Start) || !wide.End.Equal(window.End) {
		window = wide
		if exceptions, err = s.repo.ListExceptions(ctx, coach.ID, window); err != nil {
			return DayAvailability{}, err
		}
	}
	bookings, err := s.repo.ListLiveBookings(ctx, coach.ID, window)
	if err != nil {
		return DayAvailability{}, err
	}

	plan := domain.DayPlan{
		Day:        day,
		Location:   loc,
		Duration:   duration,
		Rules:      rules,
		Exceptions: exceptions,
		Bookings:   bookings,
	}
	return DayAvailability{
		CoachID:         coach.ID,
		Day:             day,
		Timezone:        loc.String(),
		DurationMinutes: int(duration / time.Minute),
		Slots:           plan.Slots(),
	}, nil
}

func widen(window domain.Interval, exceptions []domain.AvailabilityException) domain.Interval {
	for _, e := range exceptions {
		if e.Kind != domain.ExceptionKindExtra {
			continue
		}
		if e.StartAt.Before(window.Start) {
			window.Start = e.StartAt
		}
		if e.EndAt.After(window.End) {
			window.End = e.EndAt
		}
	}
	return window
}

// IsSlotAllowed reports whether [start, end) fits the coach's rules or extra
// windows. Blocked time and existing bookings are not considered.
func (s *Service) IsSlotAllowed(ctx context.Context, coachID uuid.UUID, start, end time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "availability.IsSlotAllowed", trace.WithAttributes(
		attribute.String("coach.id", coachID.String()),
	))
	defer span.End()

	if !end.After(start) {
		return false, domain.Invalid("end_utc must be after start_utc")
	}
	coach, err := s.repo.GetCoach(ctx, coachID)
	if err != nil {
		return false, err
	}
	ok, err := SlotAllowed(ctx, s.repo, coach, s.location(coach), domain.Interval{Start: start.UTC(), End: end.UTC()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admissibility check failed")
		return false, err
	}
	span.SetAttributes(attribute.Bool("allowed", ok))
	return ok, nil
}

// SlotAllowed checks span against the rules and extra exceptions visible
// through r. Callers holding a transaction pass it as r.
func SlotAllowed(ctx context.Context, r store.AvailabilityReader, coach domain.Coach, loc *time.Location, span domain.Interval) (bool, error) {
	day := domain.CivilDate(span.Start.In(loc))
	rules, err := r.ListRules(ctx, coach.ID, domain.ISOWeekday(day), day)
	if err != nil {
		return false, err
	}
	exceptions, err := r.ListExceptions(ctx, coach.ID, span)
	if err != nil {
		return false, err
	}
	return domain.SlotAllowed(loc, rules, exceptions, span), nil
}
