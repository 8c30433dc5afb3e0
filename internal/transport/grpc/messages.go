package grpc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timestamps in requests are RFC 3339 strings; dates are YYYY-MM-DD.

type ResolveDayRequest struct {
	ActorID   string `json:"actor_id,omitempty"`
	CoachID   string `json:"coach_id"`
	Date      string `json:"date"`
	ServiceID string `json:"service_id,omitempty"`
}

type Slot struct {
	StartLocal time.Time `json:"start_local"`
	EndLocal   time.Time `json:"end_local"`
	StartUTC   time.Time `json:"start_utc"`
	EndUTC     time.Time `json:"end_utc"`
}

type DayAvailability struct {
	CoachID         string `json:"coach_id"`
	Date            string `json:"date"`
	Timezone        string `json:"timezone"`
	DurationMinutes int    `json:"duration_minutes"`
	Slots           []Slot `json:"slots"`
}

type ResolveWeekRequest struct {
	ActorID          string `json:"actor_id,omitempty"`
	CoachID          string `json:"coach_id"`
	ServiceID        string `json:"service_id,omitempty"`
	IncludePastDays  bool   `json:"include_past_days,omitempty"`
	IncludeEmptyDays bool   `json:"include_empty_days,omitempty"`
	MaxSlotsPerDay   *int   `json:"max_slots_per_day,omitempty"`
	MaxTotalSlots    *int   `json:"max_total_slots,omitempty"`
}

type WeekAvailability struct {
	CoachID        string            `json:"coach_id"`
	Timezone       string            `json:"timezone"`
	WeekStart      string            `json:"week_start"`
	WeekEnd        string            `json:"week_end"`
	StartDay       string            `json:"start_day"`
	Days           []DayAvailability `json:"days"`
	TotalSlots     int               `json:"total_slots"`
	Truncated      bool              `json:"truncated"`
	MaxSlotsPerDay int               `json:"max_slots_per_day"`
	MaxTotalSlots  int               `json:"max_total_slots"`
}

type IsSlotAllowedRequest struct {
	ActorID  string `json:"actor_id,omitempty"`
	CoachID  string `json:"coach_id"`
	StartUTC string `json:"start_utc"`
	EndUTC   string `json:"end_utc"`
}

type IsSlotAllowedResponse struct {
	Allowed bool `json:"allowed"`
}

type Booking struct {
	ID                string     `json:"id"`
	CoachID           string     `json:"coach_id"`
	ClientID          string     `json:"client_id"`
	ClientName        *string    `json:"client_name,omitempty"`
	ServiceID         *string    `json:"service_id,omitempty"`
	StartUTC          time.Time  `json:"start_utc"`
	EndUTC            time.Time  `json:"end_utc"`
	Status            string     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedByUserID   *string    `json:"created_by_user_id,omitempty"`
	CancelledByUserID *string    `json:"cancelled_by_user_id,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CancelReason      *string    `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type CreateBookingRequest struct {
	ActorID         string  `json:"actor_id"`
	CoachID         string  `json:"coach_id"`
	ClientID        string  `json:"client_id,omitempty"`
	StartUTC        string  `json:"start_utc"`
	DurationMinutes int     `json:"duration_minutes"`
	ServiceID       string  `json:"service_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// CreateBookingResponse is either ok with a booking or a named rejection.
type CreateBookingResponse struct {
	OK         bool     `json:"ok"`
	Error      string   `json:"error,omitempty"`
	ConflictID string   `json:"conflict_id,omitempty"`
	Booking    *Booking `json:"booking,omitempty"`
}

type CancelBookingRequest struct {
	ActorID   string  `json:"actor_id"`
	BookingID string  `json:"booking_id"`
	Reason    *string `json:"reason,omitempty"`
}

type CancelBookingResponse struct {
	OK               bool     `json:"ok"`
	AlreadyCancelled bool     `json:"already_cancelled"`
	Booking          *Booking `json:"booking"`
}

type ListCoachesRequest struct {
	ActorID    string `json:"actor_id,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
}

type Coach struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"user_id"`
	FullName             *string `json:"full_name,omitempty"`
	Timezone             string  `json:"timezone"`
	DefaultLessonMinutes int     `json:"default_lesson_minutes"`
}

type ListCoachesResponse struct {
	Coaches []Coach `json:"coaches"`
}

type ListServicesRequest struct {
	ActorID    string `json:"actor_id,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
}

type Service struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	DurationMinutes int                 `json:"duration_minutes"`
	Price           decimal.NullDecimal `json:"price"`
	Currency        *string             `json:"currency,omitempty"`
	Active          bool                `json:"is_active"`
}

type ListServicesResponse struct {
	Services []Service `json:"services"`
}

type UpsertServiceRequest struct {
	ActorID         string              `json:"actor_id"`
	Name            string              `json:"name"`
	DurationMinutes int                 `json:"duration_minutes"`
	Price           decimal.NullDecimal `json:"price"`
	Currency        *string             `json:"currency,omitempty"`
	Active          *bool               `json:"is_active,omitempty"`
}

type UpsertServiceResponse struct {
	Service Service `json:"service"`
}

type AvailabilityRule struct {
	Weekday     int16  `json:"weekday"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	SlotMinutes int    `json:"slot_minutes,omitempty"`
	ValidFrom   string `json:"valid_from,omitempty"`
	ValidTo     string `json:"valid_to,omitempty"`
}

type SetAvailabilityRulesRequest struct {
	ActorID    string             `json:"actor_id"`
	CoachID    string             `json:"coach_id"`
	Rules      []AvailabilityRule `json:"rules"`
	ReplaceAll bool               `json:"replace_all"`
}

type SetAvailabilityRulesResponse struct {
	Inserted int `json:"inserted"`
}

type AddAvailabilityExceptionRequest struct {
	ActorID  string  `json:"actor_id"`
	CoachID  string  `json:"coach_id"`
	Type     string  `json:"type"`
	StartUTC string  `json:"start_utc"`
	EndUTC   string  `json:"end_utc"`
	Reason   *string `json:"reason,omitempty"`
}

type AvailabilityException struct {
	ID       string    `json:"id"`
	CoachID  string    `json:"coach_id"`
	Type     string    `json:"type"`
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`
	Reason   *string   `json:"reason,omitempty"`
}

type AddAvailabilityExceptionResponse struct {
	Exception AvailabilityException `json:"exception"`
}

type ListCoachBookingsRequest struct {
	ActorID          string `json:"actor_id"`
	CoachID          string `json:"coach_id"`
	StartUTC         string `json:"start_utc"`
	EndUTC           string `json:"end_utc"`
	IncludeCancelled bool   `json:"include_cancelled,omitempty"`
}

type ListMyBookingsRequest struct {
	ActorID          string `json:"actor_id"`
	StartUTC         string `json:"start_utc"`
	EndUTC           string `json:"end_utc"`
	IncludeCancelled bool   `json:"include_cancelled,omitempty"`
}

type ListBookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

type PingRequest struct{}

type PingResponse struct {
	OK bool `json:"ok"`
}

// actorRequest is implemented by requests that carry a caller identity.
type actorRequest interface {
	actor() string
}

func (r *ResolveDayRequest) actor() string               { return r.ActorID }
func (r *ResolveWeekRequest) actor() string              { return r.ActorID }
func (r *IsSlotAllowedRequest) actor() string            { return r.ActorID }
func (r *CreateBookingRequest) actor() string            { return r.ActorID }
func (r *CancelBookingRequest) actor() string            { return r.ActorID }
func (r *ListCoachesRequest) actor() string              { return r.ActorID }
func (r *ListServicesRequest) actor() string             { return r.ActorID }
func (r *UpsertServiceRequest) actor() string            { return r.ActorID }
func (r *SetAvailabilityRulesRequest) actor() string     { return r.ActorID }
func (r *AddAvailabilityExceptionRequest) actor() string { return r.ActorID }
func (r *ListCoachBookingsRequest) actor() string        { return r.ActorID }
func (r *ListMyBookingsRequest) actor() string           { return r.ActorID }
