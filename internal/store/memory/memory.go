// Package memory is an in-process implementation of store.AgendaRepository
// for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

// Store serializes every transaction behind one mutex. A transaction works on
// a copy of the data that replaces the live state only when fn succeeds.
//
// Functions passed to InTransaction and InCoachTransaction must use the tx
// they are given; calling back into the Store from inside fn deadlocks.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	st  *state
}

type state struct {
	users      map[uuid.UUID]domain.AppUser
	clients    map[uuid.UUID]domain.Client
	coaches    map[uuid.UUID]domain.Coach
	services   map[uuid.UUID]domain.Service
	bookings   map[uuid.UUID]domain.Booking
	rules      []domain.AvailabilityRule
	exceptions []domain.AvailabilityException
}

var _ store.AgendaRepository = (*Store)(nil)

func New() *Store {
	return &Store{
		now: func() time.Time { return time.Now().UTC() },
		st: &state{
			users:    make(map[uuid.UUID]domain.AppUser),
			clients:  make(map[uuid.UUID]domain.Client),
			coaches:  make(map[uuid.UUID]domain.Coach),
			services: make(map[uuid.UUID]domain.Service),
			bookings: make(map[uuid.UUID]domain.Booking),
		},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:      make(map[uuid.UUID]domain.AppUser, len(s.users)),
		clients:    make(map[uuid.UUID]domain.Client, len(s.clients)),
		coaches:    make(map[uuid.UUID]domain.Coach, len(s.coaches)),
		services:   make(map[uuid.UUID]domain.Service, len(s.services)),
		bookings:   make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		rules:      append([]domain.AvailabilityRule(nil), s.rules...),
		exceptions: append([]domain.AvailabilityException(nil), s.exceptions...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.coaches {
		c.coaches[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AgendaTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) InCoachTransaction(ctx context.Context, coachID uuid.UUID, fn func(ctx context.Context, tx store.AgendaTx) error) error {
	return s.InTransaction(ctx, fn)
}

func (s *Store) view() *tx {
	return &tx{st: s.st, now: s.now}
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (domain.AppUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetUserByExternalID(ctx, externalID)
}

func (s *Store) GetClientByUserID(ctx context.Context, userID uuid.UUID) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetClientByUserID(ctx, userID)
}

func (s *Store) GetCoachByUserID(ctx context.Context, userID uuid.UUID) (domain.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetCoachByUserID(ctx, userID)
}

func (s *Store) GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetCoach(ctx, coachID)
}

func (s *Store) ListRules(ctx context.Context, coachID uuid.UUID, weekday int16, day time.Time) ([]domain.AvailabilityRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListRules(ctx, coachID, weekday, day)
}

func (s *Store) ListExceptions(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.AvailabilityException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListExceptions(ctx, coachID, window)
}

func (s *Store) ListLiveBookings(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListLiveBookings(ctx, coachID, window)
}

func (s *Store) ListCoaches(ctx context.Context, activeOnly bool) ([]store.CoachSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.CoachSummary, 0, len(s.st.coaches))
	for _, c := range s.st.coaches {
		u, ok := s.st.users[c.UserID]
		if activeOnly && (!ok || u.Status != domain.UserStatusActive) {
			continue
		}
		out = append(out, store.CoachSummary{Coach: c, FullName: u.FullName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.st.services[serviceID]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Service, 0, len(s.st.services))
	for _, svc := range s.st.services {
		if activeOnly && !svc.Active {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Store) ListCoachBookings(ctx context.Context, coachID uuid.UUID, filter store.BookingFilter) ([]store.RosterBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.RosterBooking
	for _, b := range s.st.filterBookings(filter, func(b domain.Booking) bool { return b.CoachID == coachID }) {
		row := store.RosterBooking{Booking: b}
		if c, ok := s.st.clients[b.ClientID]; ok {
			row.ClientName = s.st.users[c.UserID].FullName
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) ListClientBookings(ctx context.Context, clientID uuid.UUID, filter store.BookingFilter) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.filterBookings(filter, func(b domain.Booking) bool { return b.ClientID == clientID }), nil
}

func (s *state) filterBookings(filter store.BookingFilter, match func(domain.Booking) bool) []domain.Booking {
	var out []domain.Booking
	for _, b := range s.bookings {
		if !match(b) || !b.Span().Overlaps(filter.Window) {
			continue
		}
		if !filter.IncludeCancelled && !b.Live() {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)
	return out
}

func sortBookings(rows []domain.Booking) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].StartAt.Equal(rows[j].StartAt) {
			return rows[i].StartAt.Before(rows[j].StartAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})
}
