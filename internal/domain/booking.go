package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusTentative BookingStatus = "tentative"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// LiveStatuses hold the coach's time.
var LiveStatuses = []BookingStatus{BookingStatusTentative, BookingStatusConfirmed}

const MaxBookingMinutes = 24 * 60

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:booking"`

	ID                uuid.UUID     `bun:"id,pk,type:uuid"`
	CoachID           uuid.UUID     `bun:"coach_id,notnull,type:uuid"`
	ClientID          uuid.UUID     `bun:"client_id,notnull,type:uuid"`
	ServiceID         *uuid.UUID    `bun:"service_id,type:uuid"`
	StartAt           time.Time     `bun:"start_at,notnull"`
	EndAt             time.Time     `bun:"end_at,notnull"`
	Status            BookingStatus `bun:"status,notnull"`
	Notes             *string       `bun:"notes"`
	CreatedByUserID   *uuid.UUID    `bun:"created_by_user_id,type:uuid"`
	CancelledByUserID *uuid.UUID    `bun:"cancelled_by_user_id,type:uuid"`
	CancelledAt       *time.Time    `bun:"cancelled_at"`
	CancelReason      *string       `bun:"cancel_reason"`
	CreatedAt         time.Time     `bun:"created_at,notnull"`
	UpdatedAt         time.Time     `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (b Booking) Live() bool {
	return b.Status == BookingStatusTentative || b.Status == BookingStatusConfirmed
}

func (b Booking) Span() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}
