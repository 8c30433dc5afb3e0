package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultSlotMinutes = 60

// AvailabilityRule is a recurring weekly window in the coach's local time.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	CoachID     uuid.UUID  `bun:"coach_id,notnull,type:uuid"`
	Weekday     int16      `bun:"weekday,notnull"`
	StartTime   TimeOfDay  `bun:"start_time,notnull,type:time"`
	EndTime     TimeOfDay  `bun:"end_time,notnull,type:time"`
	SlotMinutes int        `bun:"slot_minutes,notnull"`
	ValidFrom   *time.Time `bun:"valid_from,type:date"`
	ValidTo     *time.Time `bun:"valid_to,type:date"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// AppliesOn reports whether the rule's inclusive validity range covers day.
// Weekday is not checked.
func (r AvailabilityRule) AppliesOn(day time.Time) bool {
	d := CivilDate(day)
	if r.ValidFrom != nil && d.Before(CivilDate(*r.ValidFrom)) {
		return false
	}
	if r.ValidTo != nil && d.After(CivilDate(*r.ValidTo)) {
		return false
	}
	return true
}

// Window places the rule on day in loc.
func (r AvailabilityRule) Window(day time.Time, loc *time.Location) Interval {
	return Interval{Start: r.StartTime.On(day, loc), End: r.EndTime.On(day, loc)}
}

func (r AvailabilityRule) Step(fallback time.Duration) time.Duration {
	if r.SlotMinutes < 1 {
		return fallback
	}
	return time.Duration(r.SlotMinutes) * time.Minute
}

// Validate checks a rule before it is stored. A zero SlotMinutes is replaced by the default.
func (r *AvailabilityRule) Validate() error {
	if r.Weekday < 1 || r.Weekday > 7 {
		return validationError("weekday must be between 1 (Monday) and 7 (Sunday)")
	}
	if !r.StartTime.Before(r.EndTime) {
		return validationError("start_time must be before end_time")
	}
	if r.SlotMinutes == 0 {
		r.SlotMinutes = DefaultSlotMinutes
	}
	if r.SlotMinutes < 1 {
		return validationError("slot_minutes must be positive")
	}
	if r.ValidFrom != nil && r.ValidTo != nil && CivilDate(*r.ValidFrom).After(CivilDate(*r.ValidTo)) {
		return validationError("valid_from must not be after valid_to")
	}
	return nil
}

type ExceptionKind string

const (
	ExceptionKindBlocked ExceptionKind = "blocked"
	ExceptionKindExtra   ExceptionKind = "extra"
)

func ParseExceptionKind(s string) (ExceptionKind, error) {
	k := ExceptionKind(s)
	switch k {
	case ExceptionKindBlocked, ExceptionKindExtra:
		return k, nil
	default:
		return "", validationError("invalid_exception_type")
	}
}

// AvailabilityException removes (blocked) or adds (extra) time for one coach.
type AvailabilityException struct {
	bun.BaseModel `bun:"table:availability_exceptions"`

	ID        uuid.UUID     `bun:"id,pk,type:uuid"`
	CoachID   uuid.UUID     `bun:"coach_id,notnull,type:uuid"`
	Kind      ExceptionKind `bun:"kind,notnull"`
	StartAt   time.Time     `bun:"start_at,notnull"`
	EndAt     time.Time     `bun:"end_at,notnull"`
	Reason    *string       `bun:"reason"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func (e *AvailabilityException) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (e AvailabilityException) Span() Interval {
	return Interval{Start: e.StartAt, End: e.EndAt}
}
