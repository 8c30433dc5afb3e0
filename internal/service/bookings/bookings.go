// Package bookings creates, cancels and lists coach bookings.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/service/access"
	"padelagenda/backend/internal/service/availability"
	"padelagenda/backend/internal/store"
)

type Repository interface {
	GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
	ListCoachBookings(ctx context.Context, coachID uuid.UUID, filter store.BookingFilter) ([]store.RosterBooking, error)
	ListClientBookings(ctx context.Context, clientID uuid.UUID, filter store.BookingFilter) ([]domain.Booking, error)
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AgendaTx) error) error
	InCoachTransaction(ctx context.Context, coachID uuid.UUID, fn func(ctx context.Context, tx store.AgendaTx) error) error
}

type Service struct {
	repo       Repository
	access     *access.Service
	clock      domain.Clock
	defaultLoc *time.Location
}

func NewService(repo Repository, acc *access.Service, clock domain.Clock, defaultLoc *time.Location) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{repo: repo, access: acc, clock: clock, defaultLoc: defaultLoc}
}

type CreateInput struct {
	ActorID         string
	CoachID         uuid.UUID
	ClientID        *uuid.UUID
	StartUTC        time.Time
	DurationMinutes int
	ServiceID       *uuid.UUID
	Notes           *string
}

// CreateResult carries either the new booking or the reason it was refused.
type CreateResult struct {
	Booking   domain.Booking
	Rejection domain.Rejection
	// ConflictID names the blocking exception or booking, when known.
	ConflictID uuid.UUID
}

func (r CreateResult) OK() bool {
	return r.Rejection == ""
}

func rejected(reason domain.Rejection, conflictID uuid.UUID) CreateResult {
	return CreateResult{Rejection: reason, ConflictID: conflictID}
}

func (s *Service) CreateBooking(ctx context.Context, in CreateInput) (CreateResult, error) {
	if in.CoachID == uuid.Nil {
		return CreateResult{}, domain.Invalid("coach_id is required")
	}
	if in.StartUTC.IsZero() {
		return CreateResult{}, domain.Invalid("start_utc is required")
	}
	if in.DurationMinutes < 1 || in.DurationMinutes > domain.MaxBookingMinutes {
		return CreateResult{}, domain.Invalid(fmt.Sprintf("duration_minutes must be between 1 and %d", domain.MaxBookingMinutes))
	}

	actor, err := s.access.ResolveOrEnrollClient(ctx, in.ActorID)
	if err != nil {
		return CreateResult{}, err
	}
	if err := access.RequireActive(actor); err != nil {
		return CreateResult{}, err
	}

	var clientID uuid.UUID
	switch actor.Role {
	case domain.RoleClient:
		clientID = actor.ClientID
	case domain.RoleCoach, domain.RoleAdmin:
		if in.ClientID == nil || *in.ClientID == uuid.Nil {
			return rejected(domain.RejectionClientIDRequired, uuid.Nil), nil
		}
		clientID = *in.ClientID
	default:
		return CreateResult{}, fmt.Errorf("actor %s has unknown role %q", actor.UserID, actor.Role)
	}

	coach, err := s.repo.GetCoach(ctx, in.CoachID)
	if err != nil {
		return CreateResult{}, notFound("coach", err)
	}
	if in.ServiceID != nil {
		if _, err := s.repo.GetService(ctx, *in.ServiceID); err != nil {
			return CreateResult{}, notFound("service", err)
		}
	}
	loc := domain.LoadLocation(coach.Timezone, s.defaultLoc)
	span := domain.NewInterval(in.StartUTC.UTC(), time.Duration(in.DurationMinutes)*time.Minute)

	var out CreateResult
	err = s.repo.InCoachTransaction(ctx, coach.ID, func(ctx context.Context, tx store.AgendaTx) error {
		allowed, err := availability.SlotAllowed(ctx, tx, coach, loc, span)
		if err != nil {
			return err
		}
		if !allowed {
			out = rejected(domain.RejectionOutsideAvailability, uuid.Nil)
			return nil
		}

		ex, err := tx.FindOverlappingException(ctx, coach.ID, domain.ExceptionKindBlocked, span)
		switch {
		case err == nil:
			out = rejected(domain.RejectionBlockedByException, ex.ID)
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		existing, err := tx.FindOverlappingBooking(ctx, coach.ID, span)
		switch {
		case err == nil:
			out = rejected(domain.RejectionSlotNotAvailable, existing.ID)
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		createdBy := actor.UserID
		b, err := tx.CreateBooking(ctx, domain.Booking{
			CoachID:         coach.ID,
			ClientID:        clientID,
			ServiceID:       in.ServiceID,
			StartAt:         span.Start,
			EndAt:           span.End,
			Status:          domain.BookingStatusConfirmed,
			Notes:           trimmed(in.Notes),
			CreatedByUserID: &createdBy,
		})
		if err != nil {
			// Coach and service were checked above, so a dangling reference here is the client.
			return notFound("client", err)
		}
		out = CreateResult{Booking: b}
		return nil
	})
	if errors.Is(err, store.ErrConflict) {
		return rejected(domain.RejectionSlotNotAvailable, uuid.Nil), nil
	}
	if err != nil {
		return CreateResult{}, err
	}
	return out, nil
}

func notFound(resource string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(resource, err)
	}
	return err
}

type CancelInput struct {
	ActorID   string
	BookingID uuid.UUID
	Reason    *string
}

type CancelResult struct {
	Booking domain.Booking
	// AlreadyCancelled is set when the booking was cancelled before this call.
	AlreadyCancelled bool
}

// CancelBooking is idempotent: cancelling a cancelled booking succeeds and
// leaves the original cancellation untouched.
func (s *Service) CancelBooking(ctx context.Context, in CancelInput) (CancelResult, error) {
	if in.BookingID == uuid.Nil {
		return CancelResult{}, domain.Invalid("booking_id is required")
	}
	actor, err := s.access.ResolveActor(ctx, in.ActorID)
	if err != nil {
		return CancelResult{}, err
	}
	if err := access.RequireActive(actor); err != nil {
		return CancelResult{}, err
	}

	var out CancelResult
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.AgendaTx) error {
		b, err := tx.GetBookingForUpdate(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingStatusCancelled {
			out = CancelResult{Booking: b, AlreadyCancelled: true}
			return nil
		}
		if err := canCancel(actor, b); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		by := actor.UserID
		b.Status = domain.BookingStatusCancelled
		b.CancelledAt = &now
		b.CancelledByUserID = &by
		b.CancelReason = trimmed(in.Reason)
		cancelled, err := tx.CancelBooking(ctx, b)
		if err != nil {
			return err
		}
		out = CancelResult{Booking: cancelled}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	return out, nil
}

func canCancel(actor domain.Actor, b domain.Booking) error {
	switch actor.Role {
	case domain.RoleClient:
		if actor.ClientID == uuid.Nil || actor.ClientID != b.ClientID {
			return domain.Forbidden(domain.CodeForbiddenNotYourBooking)
		}
		return nil
	case domain.RoleCoach:
		if actor.CoachID == uuid.Nil || actor.CoachID != b.CoachID {
			return domain.Forbidden(domain.CodeForbiddenOtherCoachBooking)
		}
		return nil
	case domain.RoleAdmin:
		return nil
	default:
		return fmt.Errorf("actor %s has unknown role %q", actor.UserID, actor.Role)
	}
}

type ListCoachInput struct {
	ActorID          string
	CoachID          uuid.UUID
	Window           domain.Interval
	IncludeCancelled bool
}

// ListCoachBookings returns a coach's agenda with client names.
func (s *Service) ListCoachBookings(ctx context.Context, in ListCoachInput) ([]store.RosterBooking, error) {
	if err := validateWindow(in.Window); err != nil {
		return nil, err
	}
	if _, err := s.access.Authorize(ctx, in.ActorID, access.RequireCoachOrAdmin, access.CoachScope(in.CoachID)); err != nil {
		return nil, err
	}
	return s.repo.ListCoachBookings(ctx, in.CoachID, store.BookingFilter{Window: in.Window.UTC(), IncludeCancelled: in.IncludeCancelled})
}

type ListMineInput struct {
	ActorID          string
	Window           domain.Interval
	IncludeCancelled bool
}

// ListMyBookings returns the calling client's bookings. Unknown callers are
// enrolled as clients first.
func (s *Service) ListMyBookings(ctx context.Context, in ListMineInput) ([]domain.Booking, error) {
	if err := validateWindow(in.Window); err != nil {
		return nil, err
	}
	actor, err := s.access.ResolveOrEnrollClient(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireActive(actor); err != nil {
		return nil, err
	}
	if err := access.RequireClient(actor); err != nil {
		return nil, err
	}
	return s.repo.ListClientBookings(ctx, actor.ClientID, store.BookingFilter{Window: in.Window.UTC(), IncludeCancelled: in.IncludeCancelled})
}

func validateWindow(w domain.Interval) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return domain.Invalid("start_utc and end_utc are required")
	}
	if !w.End.After(w.Start) {
		return domain.Invalid("end_utc must be after start_utc")
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
