package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
)

// CoachSummary is a coach row joined with its user's display name.
type CoachSummary struct {
	domain.Coach `bun:",extend"`

	FullName *string `bun:"full_name"`
}

// RosterBooking is a booking row joined with the client's display name.
type RosterBooking struct {
	domain.Booking `bun:",extend"`

	ClientName *string `bun:"client_name"`
}

// BookingFilter selects bookings intersecting Window.
type BookingFilter struct {
	Window           domain.Interval
	IncludeCancelled bool
}

// ActorReader looks up identities. Lookups that match nothing return ErrNotFound.
type ActorReader interface {
	GetUserByExternalID(ctx context.Context, externalID string) (domain.AppUser, error)
	GetClientByUserID(ctx context.Context, userID uuid.UUID) (domain.Client, error)
	GetCoachByUserID(ctx context.Context, userID uuid.UUID) (domain.Coach, error)
}

// AvailabilityReader returns the inputs of slot resolution for one coach.
type AvailabilityReader interface {
	GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error)
	// ListRules returns rules for weekday whose validity range covers day.
	ListRules(ctx context.Context, coachID uuid.UUID, weekday int16, day time.Time) ([]domain.AvailabilityRule, error)
	ListExceptions(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.AvailabilityException, error)
	ListLiveBookings(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.Booking, error)
}

type AgendaRepository interface {
	ActorReader
	AvailabilityReader

	Ping(ctx context.Context) error

	ListCoaches(ctx context.Context, activeOnly bool) ([]CoachSummary, error)
	GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)

	ListCoachBookings(ctx context.Context, coachID uuid.UUID, filter BookingFilter) ([]RosterBooking, error)
	ListClientBookings(ctx context.Context, clientID uuid.UUID, filter BookingFilter) ([]domain.Booking, error)

	InTransaction(ctx context.Context, fn func(ctx context.Context, tx AgendaTx) error) error
	// InCoachTransaction serializes fn against every other coach transaction
	// for the same coach.
	InCoachTransaction(ctx context.Context, coachID uuid.UUID, fn func(ctx context.Context, tx AgendaTx) error) error
}

type AgendaTx interface {
	ActorReader
	AvailabilityReader

	CreateUser(ctx context.Context, user domain.AppUser) (domain.AppUser, error)
	CreateClient(ctx context.Context, client domain.Client) (domain.Client, error)

	UpsertService(ctx context.Context, svc domain.Service) (domain.Service, error)

	DeleteRules(ctx context.Context, coachID uuid.UUID) error
	CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error)
	CreateException(ctx context.Context, ex domain.AvailabilityException) (domain.AvailabilityException, error)

	// FindOverlappingException returns the first exception of kind overlapping
	// span, or ErrNotFound.
	FindOverlappingException(ctx context.Context, coachID uuid.UUID, kind domain.ExceptionKind, span domain.Interval) (domain.AvailabilityException, error)
	// FindOverlappingBooking returns the first live booking overlapping span, or ErrNotFound.
	FindOverlappingBooking(ctx context.Context, coachID uuid.UUID, span domain.Interval) (domain.Booking, error)

	// CreateBooking returns ErrConflict when the row would overlap a live booking.
	CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	CancelBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
}
