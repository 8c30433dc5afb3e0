package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/service/availability"
	"padelagenda/backend/internal/service/bookings"
	"padelagenda/backend/internal/service/schedule"
	"padelagenda/backend/internal/store"
)

type availabilityService interface {
	ResolveDay(ctx context.Context, q availability.DayQuery) (availability.DayAvailability, error)
	ResolveWeek(ctx context.Context, q availability.WeekQuery) (availability.WeekAvailability, error)
	IsSlotAllowed(ctx context.Context, coachID uuid.UUID, start, end time.Time) (bool, error)
}

type bookingService interface {
	CreateBooking(ctx context.Context, in bookings.CreateInput) (bookings.CreateResult, error)
	CancelBooking(ctx context.Context, in bookings.CancelInput) (bookings.CancelResult, error)
	ListCoachBookings(ctx context.Context, in bookings.ListCoachInput) ([]store.RosterBooking, error)
	ListMyBookings(ctx context.Context, in bookings.ListMineInput) ([]domain.Booking, error)
}

type scheduleService interface {
	SetAvailabilityRules(ctx context.Context, in schedule.SetRulesInput) (int, error)
	AddAvailabilityException(ctx context.Context, in schedule.ExceptionInput) (domain.AvailabilityException, error)
	UpsertService(ctx context.Context, in schedule.ServiceInput) (domain.Service, error)
	ListCoaches(ctx context.Context, activeOnly bool) ([]store.CoachSummary, error)
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
}

type viewerChecker interface {
	CheckViewer(ctx context.Context, externalID string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the dependencies of AgendaServer.
type Services struct {
	Availability availabilityService
	Bookings     bookingService
	Schedule     scheduleService
	Viewers      viewerChecker
	DB           pinger
}

type AgendaServer struct {
	svc Services
	log *slog.Logger
}

var _ AgendaServiceServer = (*AgendaServer)(nil)

func NewAgendaServer(svc Services, log *slog.Logger) *AgendaServer {
	if log == nil {
		log = slog.Default()
	}
	return &AgendaServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.agenda")),
	}
}

func (s *AgendaServer) logger(ctx context.Context, rpc string) *slog.Logger {
	log := s.log.With(slog.String("rpc", rpc))
	if id := RequestIDFromContext(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}
	return log
}

func (s *AgendaServer) ResolveDay(ctx context.Context, req *ResolveDayRequest) (*DayAvailability, error) {
	log := s.logger(ctx, "ResolveDay")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	serviceID, err := optionalID(req.ServiceID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "service_id must be a UUID")
	}
	day, err := domain.ParseDate(req.Date)
	if err != nil {
		return nil, statusFor(log, err, "day")
	}
	if err := s.svc.Viewers.CheckViewer(ctx, req.ActorID); err != nil {
		return nil, statusFor(log, err, "actor")
	}

	out, err := s.svc.Availability.ResolveDay(ctx, availability.DayQuery{CoachID: coachID, Day: day, ServiceID: serviceID})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}

	log.Debug("day resolved", slog.String("coach_id", coachID.String()), slog.String("date", req.Date), slog.Int("slots", len(out.Slots)))
	resp := toDayAvailability(out)
	return &resp, nil
}

func (s *AgendaServer) ResolveWeek(ctx context.Context, req *ResolveWeekRequest) (*WeekAvailability, error) {
	log := s.logger(ctx, "ResolveWeek")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	serviceID, err := optionalID(req.ServiceID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "service_id must be a UUID")
	}
	if err := s.svc.Viewers.CheckViewer(ctx, req.ActorID); err != nil {
		return nil, statusFor(log, err, "actor")
	}

	week, err := s.svc.Availability.ResolveWeek(ctx, availability.WeekQuery{
		CoachID:          coachID,
		ServiceID:        serviceID,
		IncludePastDays:  req.IncludePastDays,
		IncludeEmptyDays: req.IncludeEmptyDays,
		MaxSlotsPerDay:   req.MaxSlotsPerDay,
		MaxTotalSlots:    req.MaxTotalSlots,
	})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}

	days := make([]DayAvailability, 0, len(week.Days))
	for _, d := range week.Days {
		days = append(days, toDayAvailability(d))
	}
	log.Debug("week resolved", slog.String("coach_id", coachID.String()), slog.Int("slots", week.TotalSlots), slog.Bool("truncated", week.Truncated))

	return &WeekAvailability{
		CoachID:        week.CoachID.String(),
		Timezone:       week.Timezone,
		WeekStart:      week.WeekStart.Format(domain.DateLayout),
		WeekEnd:        week.WeekEnd.Format(domain.DateLayout),
		StartDay:       week.StartDay.Format(domain.DateLayout),
		Days:           days,
		TotalSlots:     week.TotalSlots,
		Truncated:      week.Truncated,
		MaxSlotsPerDay: week.Limits.MaxSlotsPerDay,
		MaxTotalSlots:  week.Limits.MaxTotalSlots,
	}, nil
}

func (s *AgendaServer) IsSlotAllowed(ctx context.Context, req *IsSlotAllowedRequest) (*IsSlotAllowedResponse, error) {
	log := s.logger(ctx, "IsSlotAllowed")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	start, err := domain.ParseInstant(req.StartUTC)
	if err != nil {
		return nil, statusFor(log, err, "slot")
	}
	end, err := domain.ParseInstant(req.EndUTC)
	if err != nil {
		return nil, statusFor(log, err, "slot")
	}
	if err := s.svc.Viewers.CheckViewer(ctx, req.ActorID); err != nil {
		return nil, statusFor(log, err, "actor")
	}

	allowed, err := s.svc.Availability.IsSlotAllowed(ctx, coachID, start, end)
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}
	return &IsSlotAllowedResponse{Allowed: allowed}, nil
}

func (s *AgendaServer) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*CreateBookingResponse, error) {
	log := s.logger(ctx, "CreateBooking")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	clientID, err := optionalID(req.ClientID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "client_id must be a UUID")
	}
	serviceID, err := optionalID(req.ServiceID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "service_id must be a UUID")
	}
	start, err := domain.ParseInstant(req.StartUTC)
	if err != nil {
		return nil, statusFor(log, err, "booking")
	}

	res, err := s.svc.Bookings.CreateBooking(ctx, bookings.CreateInput{
		ActorID:         req.ActorID,
		CoachID:         coachID,
		ClientID:        clientID,
		StartUTC:        start,
		DurationMinutes: req.DurationMinutes,
		ServiceID:       serviceID,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}
	if !res.OK() {
		log.Info(
			"booking rejected",
			slog.String("reason", string(res.Rejection)),
			slog.String("coach_id", coachID.String()),
			slog.Time("start_utc", start),
		)
		resp := &CreateBookingResponse{Error: string(res.Rejection)}
		if res.ConflictID != uuid.Nil {
			resp.ConflictID = res.ConflictID.String()
		}
		return resp, nil
	}

	log.Info(
		"booking created",
		slog.String("booking_id", res.Booking.ID.String()),
		slog.String("coach_id", res.Booking.CoachID.String()),
		slog.Time("start_utc", res.Booking.StartAt),
		slog.Time("end_utc", res.Booking.EndAt),
	)
	b := toBooking(res.Booking, nil)
	return &CreateBookingResponse{OK: true, Booking: &b}, nil
}

func (s *AgendaServer) CancelBooking(ctx context.Context, req *CancelBookingRequest) (*CancelBookingResponse, error) {
	log := s.logger(ctx, "CancelBooking")

	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "booking_id must be a UUID")
	}

	res, err := s.svc.Bookings.CancelBooking(ctx, bookings.CancelInput{ActorID: req.ActorID, BookingID: id, Reason: req.Reason})
	if err != nil {
		return nil, statusFor(log, err, "booking")
	}

	log.Info("booking cancelled", slog.String("booking_id", id.String()), slog.Bool("already_cancelled", res.AlreadyCancelled))
	b := toBooking(res.Booking, nil)
	return &CancelBookingResponse{OK: true, AlreadyCancelled: res.AlreadyCancelled, Booking: &b}, nil
}

func (s *AgendaServer) ListCoaches(ctx context.Context, req *ListCoachesRequest) (*ListCoachesResponse, error) {
	log := s.logger(ctx, "ListCoaches")

	if err := s.svc.Viewers.CheckViewer(ctx, req.ActorID); err != nil {
		return nil, statusFor(log, err, "actor")
	}
	rows, err := s.svc.Schedule.ListCoaches(ctx, req.ActiveOnly)
	if err != nil {
		return nil, statusFor(log, err, "coaches")
	}

	out := make([]Coach, 0, len(rows))
	for _, c := range rows {
		out = append(out, Coach{
			ID:                   c.ID.String(),
			UserID:               c.UserID.String(),
			FullName:             c.FullName,
			Timezone:             c.Timezone,
			DefaultLessonMinutes: c.DefaultLessonMinutes,
		})
	}
	return &ListCoachesResponse{Coaches: out}, nil
}

func (s *AgendaServer) ListServices(ctx context.Context, req *ListServicesRequest) (*ListServicesResponse, error) {
	log := s.logger(ctx, "ListServices")

	if err := s.svc.Viewers.CheckViewer(ctx, req.ActorID); err != nil {
		return nil, statusFor(log, err, "actor")
	}
	rows, err := s.svc.Schedule.ListServices(ctx, req.ActiveOnly)
	if err != nil {
		return nil, statusFor(log, err, "services")
	}

	out := make([]Service, 0, len(rows))
	for _, svc := range rows {
		out = append(out, toService(svc))
	}
	return &ListServicesResponse{Services: out}, nil
}

func (s *AgendaServer) UpsertService(ctx context.Context, req *UpsertServiceRequest) (*UpsertServiceResponse, error) {
	log := s.logger(ctx, "UpsertService")

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	svc, err := s.svc.Schedule.UpsertService(ctx, schedule.ServiceInput{
		ActorID:         req.ActorID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Currency:        req.Currency,
		Active:          active,
	})
	if err != nil {
		return nil, statusFor(log, err, "service")
	}

	log.Info("service upserted", slog.String("service_id", svc.ID.String()), slog.String("name", svc.Name))
	return &UpsertServiceResponse{Service: toService(svc)}, nil
}

func (s *AgendaServer) SetAvailabilityRules(ctx context.Context, req *SetAvailabilityRulesRequest) (*SetAvailabilityRulesResponse, error) {
	log := s.logger(ctx, "SetAvailabilityRules")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	rules := make([]schedule.RuleInput, 0, len(req.Rules))
	for _, r := range req.Rules {
		in := schedule.RuleInput{
			Weekday:     r.Weekday,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			SlotMinutes: r.SlotMinutes,
		}
		if in.ValidFrom, err = optionalDate(r.ValidFrom); err != nil {
			return nil, statusFor(log, err, "rule")
		}
		if in.ValidTo, err = optionalDate(r.ValidTo); err != nil {
			return nil, statusFor(log, err, "rule")
		}
		rules = append(rules, in)
	}

	n, err := s.svc.Schedule.SetAvailabilityRules(ctx, schedule.SetRulesInput{
		ActorID:    req.ActorID,
		CoachID:    coachID,
		Rules:      rules,
		ReplaceAll: req.ReplaceAll,
	})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}

	log.Info("availability rules set", slog.String("coach_id", coachID.String()), slog.Int("inserted", n), slog.Bool("replace_all", req.ReplaceAll))
	return &SetAvailabilityRulesResponse{Inserted: n}, nil
}

func (s *AgendaServer) AddAvailabilityException(ctx context.Context, req *AddAvailabilityExceptionRequest) (*AddAvailabilityExceptionResponse, error) {
	log := s.logger(ctx, "AddAvailabilityException")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	start, err := domain.ParseInstant(req.StartUTC)
	if err != nil {
		return nil, statusFor(log, err, "exception")
	}
	end, err := domain.ParseInstant(req.EndUTC)
	if err != nil {
		return nil, statusFor(log, err, "exception")
	}

	ex, err := s.svc.Schedule.AddAvailabilityException(ctx, schedule.ExceptionInput{
		ActorID:  req.ActorID,
		CoachID:  coachID,
		Kind:     req.Type,
		StartUTC: start,
		EndUTC:   end,
		Reason:   req.Reason,
	})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}

	log.Info("availability exception added", slog.String("exception_id", ex.ID.String()), slog.String("coach_id", coachID.String()), slog.String("type", string(ex.Kind)))
	return &AddAvailabilityExceptionResponse{Exception: AvailabilityException{
		ID:       ex.ID.String(),
		CoachID:  ex.CoachID.String(),
		Type:     string(ex.Kind),
		StartUTC: ex.StartAt.UTC(),
		EndUTC:   ex.EndAt.UTC(),
		Reason:   ex.Reason,
	}}, nil
}

func (s *AgendaServer) ListCoachBookings(ctx context.Context, req *ListCoachBookingsRequest) (*ListBookingsResponse, error) {
	log := s.logger(ctx, "ListCoachBookings")

	coachID, err := uuid.Parse(req.CoachID)
	if err != nil {
		return nil, invalidArgument(log, "invalid_uuid", "coach_id must be a UUID")
	}
	window, err := parseWindow(req.StartUTC, req.EndUTC)
	if err != nil {
		return nil, statusFor(log, err, "window")
	}

	rows, err := s.svc.Bookings.ListCoachBookings(ctx, bookings.ListCoachInput{
		ActorID:          req.ActorID,
		CoachID:          coachID,
		Window:           window,
		IncludeCancelled: req.IncludeCancelled,
	})
	if err != nil {
		return nil, statusFor(log, err, "coach")
	}

	out := make([]Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, toBooking(r.Booking, r.ClientName))
	}
	log.Debug("coach bookings listed", slog.String("coach_id", coachID.String()), slog.Int("count", len(out)))
	return &ListBookingsResponse{Bookings: out}, nil
}

func (s *AgendaServer) ListMyBookings(ctx context.Context, req *ListMyBookingsRequest) (*ListBookingsResponse, error) {
	log := s.logger(ctx, "ListMyBookings")

	window, err := parseWindow(req.StartUTC, req.EndUTC)
	if err != nil {
		return nil, statusFor(log, err, "window")
	}

	rows, err := s.svc.Bookings.ListMyBookings(ctx, bookings.ListMineInput{
		ActorID:          req.ActorID,
		Window:           window,
		IncludeCancelled: req.IncludeCancelled,
	})
	if err != nil {
		return nil, statusFor(log, err, "bookings")
	}

	out := make([]Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBooking(b, nil))
	}
	log.Debug("client bookings listed", slog.Int("count", len(out)))
	return &ListBookingsResponse{Bookings: out}, nil
}

func (s *AgendaServer) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	log := s.logger(ctx, "Ping")
	if err := s.svc.DB.Ping(ctx); err != nil {
		return nil, statusFor(log, err, "database ping")
	}
	return &PingResponse{OK: true}, nil
}

func optionalID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseWindow(start, end string) (domain.Interval, error) {
	from, err := domain.ParseInstant(start)
	if err != nil {
		return domain.Interval{}, err
	}
	to, err := domain.ParseInstant(end)
	if err != nil {
		return domain.Interval{}, err
	}
	return domain.Interval{Start: from, End: to}, nil
}

func toDayAvailability(d availability.DayAvailability) DayAvailability {
	slots := make([]Slot, 0, len(d.Slots))
	for _, sl := range d.Slots {
		slots = append(slots, Slot{
			StartLocal: sl.StartLocal,
			EndLocal:   sl.EndLocal,
			StartUTC:   sl.StartUTC,
			EndUTC:     sl.EndUTC,
		})
	}
	return DayAvailability{
		CoachID:         d.CoachID.String(),
		Date:            d.Day.Format(domain.DateLayout),
		Timezone:        d.Timezone,
		DurationMinutes: d.DurationMinutes,
		Slots:           slots,
	}
}

func toBooking(b domain.Booking, clientName *string) Booking {
	out := Booking{
		ID:                b.ID.String(),
		CoachID:           b.CoachID.String(),
		ClientID:          b.ClientID.String(),
		ClientName:        clientName,
		ServiceID:         idString(b.ServiceID),
		StartUTC:          b.StartAt.UTC(),
		EndUTC:            b.EndAt.UTC(),
		Status:            string(b.Status),
		Notes:             b.Notes,
		CreatedByUserID:   idString(b.CreatedByUserID),
		CancelledByUserID: idString(b.CancelledByUserID),
		CancelReason:      b.CancelReason,
		CreatedAt:         b.CreatedAt.UTC(),
	}
	if b.CancelledAt != nil {
		at := b.CancelledAt.UTC()
		out.CancelledAt = &at
	}
	return out
}

func toService(s domain.Service) Service {
	return Service{
		ID:              s.ID.String(),
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		Currency:        s.Currency,
		Active:          s.Active,
	}
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
