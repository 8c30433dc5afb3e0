package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"padelagenda/backend/internal/domain"
)

const (
	DefaultMaxSlotsPerDay = 4
	DefaultMaxTotalSlots  = 20
)

// WeekQuery limits left nil take the service defaults.
type WeekQuery struct {
	CoachID          uuid.UUID
	ServiceID        *uuid.UUID
	IncludePastDays  bool
	IncludeEmptyDays bool
	MaxSlotsPerDay   *int
	MaxTotalSlots    *int
}

type WeekLimits struct {
	MaxSlotsPerDay int
	MaxTotalSlots  int
}

type WeekAvailability struct {
	CoachID    uuid.UUID
	Timezone   string
	WeekStart  time.Time
	WeekEnd    time.Time
	StartDay   time.Time
	Days       []DayAvailability
	TotalSlots int
	Truncated  bool
	Limits     WeekLimits
}

func (s *Service) limits(q WeekQuery) (WeekLimits, error) {
	l := WeekLimits{MaxSlotsPerDay: s.cfg.MaxSlotsPerDay, MaxTotalSlots: s.cfg.MaxTotalSlots}
	if q.MaxSlotsPerDay != nil {
		if *q.MaxSlotsPerDay < 1 {
			return WeekLimits{}, domain.Invalid("max_slots_per_day must be >= 1")
		}
		l.MaxSlotsPerDay = *q.MaxSlotsPerDay
	}
	if q.MaxTotalSlots != nil {
		if *q.MaxTotalSlots < 1 {
			return WeekLimits{}, domain.Invalid("max_total_slots must be >= 1")
		}
		l.MaxTotalSlots = *q.MaxTotalSlots
	}
	return l, nil
}

// ResolveWeek lists slots for the rest of the current ISO week in the coach
// zone, capped per day and in total.
func (s *Service) ResolveWeek(ctx context.Context, q WeekQuery) (WeekAvailability, error) {
	ctx, span := s.tracer.Start(ctx, "availability.ResolveWeek", trace.WithAttributes(
		attribute.String("coach.id", q.CoachID.String()),
	))
	defer span.End()

	out, err := s.resolveWeek(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve week failed")
		return WeekAvailability{}, err
	}
	span.SetAttributes(
		attribute.Int("slots", out.TotalSlots),
		attribute.Bool("truncated", out.Truncated),
	)
	return out, nil
}

func (s *Service) resolveWeek(ctx context.Context, q WeekQuery) (WeekAvailability, error) {
	limits, err := s.limits(q)
	if err != nil {
		return WeekAvailability{}, err
	}
	coach, err := s.repo.GetCoach(ctx, q.CoachID)
	if err != nil {
		return WeekAvailability{}, err
	}
	duration, err := s.lessonDuration(ctx, coach, q.ServiceID)
	if err != nil {
		return WeekAvailability{}, err
	}

	loc := s.location(coach)
	today := domain.CivilDate(s.clock.Now().In(loc))
	monday, sunday := domain.ISOWeekBounds(today)
	startDay := today
	if q.IncludePastDays {
		startDay = monday
	}

	var days []time.Time
	for d := startDay; !d.After(sunday); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	resolved := make([]DayAvailability, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WeekConcurrency)
	for i, d := range days {
		g.Go(func() error {
			day, err := s.dayFor(gctx, coach, loc, d, duration)
			if err != nil {
				return err
			}
			resolved[i] = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WeekAvailability{}, err
	}

	out := WeekAvailability{
		CoachID:   coach.ID,
		Timezone:  loc.String(),
		WeekStart: monday,
		WeekEnd:   sunday,
		StartDay:  startDay,
		Days:      []DayAvailability{},
		Limits:    limits,
	}
	for _, day := range resolved {
		if len(day.Slots) > limits.MaxSlotsPerDay {
			day.Slots = day.Slots[:limits.MaxSlotsPerDay]
			out.Truncated = true
		}
		if remaining := limits.MaxTotalSlots - out.TotalSlots; len(day.Slots) > remaining {
			day.Slots = day.Slots[:remaining]
			out.Truncated = true
		}
		if len(day.Slots) == 0 && !q.IncludeEmptyDays {
			continue
		}
		out.Days = append(out.Days, day)
		out.TotalSlots += len(day.Slots)
		if out.TotalSlots >= limits.MaxTotalSlots {
			out.Truncated = true
			break
		}
	}
	return out, nil
}
