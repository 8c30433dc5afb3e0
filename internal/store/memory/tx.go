package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

type tx struct {
	st  *state
	now func() time.Time
}

var _ store.AgendaTx = (*tx)(nil)

// stamp mirrors the insert hooks of the SQL models.
func (t *tx) stamp(id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	if *id == uuid.Nil {
		v, err := uuid.NewV7()
		if err != nil {
			return err
		}
		*id = v
	}
	now := t.now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
	return nil
}

func (t *tx) GetUserByExternalID(ctx context.Context, externalID string) (domain.AppUser, error) {
	for _, u := range t.st.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return domain.AppUser{}, store.ErrNotFound
}

func (t *tx) GetClientByUserID(ctx context.Context, userID uuid.UUID) (domain.Client, error) {
	for _, c := range t.st.clients {
		if c.UserID == userID {
			return c, nil
		}
	}
	return domain.Client{}, store.ErrNotFound
}

func (t *tx) GetCoachByUserID(ctx context.Context, userID uuid.UUID) (domain.Coach, error) {
	for _, c := range t.st.coaches {
		if c.UserID == userID {
			return c, nil
		}
	}
	return domain.Coach{}, store.ErrNotFound
}

func (t *tx) GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error) {
	c, ok := t.st.coaches[coachID]
	if !ok {
		return domain.Coach{}, store.ErrNotFound
	}
	return c, nil
}

func (t *tx) ListRules(ctx context.Context, coachID uuid.UUID, weekday int16, day time.Time) ([]domain.AvailabilityRule, error) {
	var out []domain.AvailabilityRule
	for _, r := range t.st.rules {
		if r.CoachID == coachID && r.Weekday == weekday && r.AppliesOn(day) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (t *tx) ListExceptions(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.AvailabilityException, error) {
	var out []domain.AvailabilityException
	for _, e := range t.st.exceptions {
		if e.CoachID == coachID && e.Span().Overlaps(window) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (t *tx) ListLiveBookings(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.Booking, error) {
	return t.st.filterBookings(store.BookingFilter{Window: window}, func(b domain.Booking) bool {
		return b.CoachID == coachID
	}), nil
}

func (t *tx) CreateUser(ctx context.Context, user domain.AppUser) (domain.AppUser, error) {
	if _, err := t.GetUserByExternalID(ctx, user.ExternalID); err == nil {
		return domain.AppUser{}, store.ErrConflict
	}
	if err := t.stamp(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return domain.AppUser{}, err
	}
	t.st.users[user.ID] = user
	return user, nil
}

func (t *tx) CreateClient(ctx context.Context, client domain.Client) (domain.Client, error) {
	if _, ok := t.st.users[client.UserID]; !ok {
		return domain.Client{}, store.ErrNotFound
	}
	if _, err := t.GetClientByUserID(ctx, client.UserID); err == nil {
		return domain.Client{}, store.ErrConflict
	}
	if err := t.stamp(&client.ID, &client.CreatedAt, &client.UpdatedAt); err != nil {
		return domain.Client{}, err
	}
	t.st.clients[client.ID] = client
	return client, nil
}

func (t *tx) CreateCoach(ctx context.Context, coach domain.Coach) (domain.Coach, error) {
	if _, ok := t.st.users[coach.UserID]; !ok {
		return domain.Coach{}, store.ErrNotFound
	}
	if _, err := t.GetCoachByUserID(ctx, coach.UserID); err == nil {
		return domain.Coach{}, store.ErrConflict
	}
	if err := t.stamp(&coach.ID, &coach.CreatedAt, &coach.UpdatedAt); err != nil {
		return domain.Coach{}, err
	}
	t.st.coaches[coach.ID] = coach
	return coach, nil
}

func (t *tx) UpsertService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	for id, existing := range t.st.services {
		if existing.Name != svc.Name {
			continue
		}
		existing.DurationMinutes = svc.DurationMinutes
		existing.Price = svc.Price
		existing.Currency = svc.Currency
		existing.Active = svc.Active
		existing.UpdatedAt = t.now()
		t.st.services[id] = existing
		return existing, nil
	}
	if err := t.stamp(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return domain.Service{}, err
	}
	t.st.services[svc.ID] = svc
	return svc, nil
}

func (t *tx) DeleteRules(ctx context.Context, coachID uuid.UUID) error {
	kept := t.st.rules[:0:0]
	for _, r := range t.st.rules {
		if r.CoachID != coachID {
			kept = append(kept, r)
		}
	}
	t.st.rules = kept
	return nil
}

func (t *tx) CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	if _, ok := t.st.coaches[rule.CoachID]; !ok {
		return domain.AvailabilityRule{}, store.ErrNotFound
	}
	if err := t.stamp(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return domain.AvailabilityRule{}, err
	}
	t.st.rules = append(t.st.rules, rule)
	return rule, nil
}

func (t *tx) CreateException(ctx context.Context, ex domain.AvailabilityException) (domain.AvailabilityException, error) {
	if _, ok := t.st.coaches[ex.CoachID]; !ok {
		return domain.AvailabilityException{}, store.ErrNotFound
	}
	if err := t.stamp(&ex.ID, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
		return domain.AvailabilityException{}, err
	}
	t.st.exceptions = append(t.st.exceptions, ex)
	return ex, nil
}

func (t *tx) FindOverlappingException(ctx context.Context, coachID uuid.UUID, kind domain.ExceptionKind, span domain.Interval) (domain.AvailabilityException, error) {
	exceptions, _ := t.ListExceptions(ctx, coachID, span)
	for _, e := range exceptions {
		if e.Kind == kind {
			return e, nil
		}
	}
	return domain.AvailabilityException{}, store.ErrNotFound
}

func (t *tx) FindOverlappingBooking(ctx context.Context, coachID uuid.UUID, span domain.Interval) (domain.Booking, error) {
	bookings, _ := t.ListLiveBookings(ctx, coachID, span)
	if len(bookings) == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return bookings[0], nil
}

func (t *tx) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if _, ok := t.st.coaches[booking.CoachID]; !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if _, ok := t.st.clients[booking.ClientID]; !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if booking.ServiceID != nil {
		if _, ok := t.st.services[*booking.ServiceID]; !ok {
			return domain.Booking{}, store.ErrNotFound
		}
	}
	if booking.Live() {
		if _, err := t.FindOverlappingBooking(ctx, booking.CoachID, booking.Span()); err == nil {
			return domain.Booking{}, store.ErrConflict
		}
	}
	if err := t.stamp(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return domain.Booking{}, err
	}
	t.st.bookings[booking.ID] = booking
	return booking, nil
}

func (t *tx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t *tx) CancelBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	existing, ok := t.st.bookings[booking.ID]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	existing.Status = booking.Status
	existing.CancelledByUserID = booking.CancelledByUserID
	existing.CancelledAt = booking.CancelledAt
	existing.CancelReason = booking.CancelReason
	existing.UpdatedAt = t.now()
	t.st.bookings[existing.ID] = existing
	return existing, nil
}
