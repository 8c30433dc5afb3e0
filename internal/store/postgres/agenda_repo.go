package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

const (
	pgExclusionViolation  = "23P01"
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	bookingsNoOverlap = "bookings_no_overlap"
)

type AgendaRepo struct {
	reader
	db *bun.DB
}

func NewAgendaRepo(db *bun.DB) *AgendaRepo {
	return &AgendaRepo{reader: reader{conn: db}, db: db}
}

// reader holds the queries shared by the repository and its transactions.
type reader struct {
	conn bun.IDB
}

type agendaTx struct {
	reader
	tx bun.Tx
}

var _ store.AgendaRepository = (*AgendaRepo)(nil)
var _ store.AgendaTx = agendaTx{}

func (r *AgendaRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AgendaRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AgendaTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, agendaTx{reader: reader{conn: tx}, tx: tx})
	})
}

func (r *AgendaRepo) InCoachTransaction(ctx context.Context, coachID uuid.UUID, fn func(ctx context.Context, tx store.AgendaTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCoachAgenda(ctx, tx, coachID); err != nil {
			return err
		}
		return fn(ctx, agendaTx{reader: reader{conn: tx}, tx: tx})
	})
}

func lockCoachAgenda(ctx context.Context, tx bun.Tx, coachID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "coach:"+coachID.String()).Exec(ctx)
	return err
}

func (r *AgendaRepo) ListCoaches(ctx context.Context, activeOnly bool) ([]store.CoachSummary, error) {
	var rows []store.CoachSummary
	q := r.db.NewSelect().
		Model(&rows).
		ColumnExpr("coach.*").
		ColumnExpr("u.full_name").
		Join("JOIN app_users AS u ON u.id = coach.user_id")
	if activeOnly {
		q = q.Where("u.status = ?", domain.UserStatusActive)
	}
	if err := q.OrderExpr("coach.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AgendaRepo) GetService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	var svc domain.Service
	err := r.db.NewSelect().
		Model(&svc).
		Where("id = ?", serviceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return svc, nil
}

func (r *AgendaRepo) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	var rows []domain.Service
	q := r.db.NewSelect().Model(&rows)
	if activeOnly {
		q = q.Where("is_active")
	}
	if err := q.OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AgendaRepo) ListCoachBookings(ctx context.Context, coachID uuid.UUID, filter store.BookingFilter) ([]store.RosterBooking, error) {
	var rows []store.RosterBooking
	q := r.db.NewSelect().
		Model(&rows).
		ColumnExpr("booking.*").
		ColumnExpr("u.full_name AS client_name").
		Join("JOIN clients AS c ON c.id = booking.client_id").
		Join("JOIN app_users AS u ON u.id = c.user_id").
		Where("booking.coach_id = ?", coachID).
		Where("booking.start_at < ?", filter.Window.End).
		Where("booking.end_at > ?", filter.Window.Start)
	if !filter.IncludeCancelled {
		q = q.Where("booking.status IN (?)", bun.In(domain.LiveStatuses))
	}
	if err := q.OrderExpr("booking.start_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AgendaRepo) ListClientBookings(ctx context.Context, clientID uuid.UUID, filter store.BookingFilter) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().
		Model(&rows).
		Where("client_id = ?", clientID).
		Where("start_at < ?", filter.Window.End).
		Where("end_at > ?", filter.Window.Start)
	if !filter.IncludeCancelled {
		q = q.Where("status IN (?)", bun.In(domain.LiveStatuses))
	}
	if err := q.OrderExpr("start_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r reader) GetUserByExternalID(ctx context.Context, externalID string) (domain.AppUser, error) {
	var u domain.AppUser
	err := r.conn.NewSelect().
		Model(&u).
		Where("external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.AppUser{}, notFound(err)
	}
	return u, nil
}

func (r reader) GetClientByUserID(ctx context.Context, userID uuid.UUID) (domain.Client, error) {
	var c domain.Client
	err := r.conn.NewSelect().
		Model(&c).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Client{}, notFound(err)
	}
	return c, nil
}

func (r reader) GetCoachByUserID(ctx context.Context, userID uuid.UUID) (domain.Coach, error) {
	var c domain.Coach
	err := r.conn.NewSelect().
		Model(&c).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Coach{}, notFound(err)
	}
	return c, nil
}

func (r reader) GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error) {
	var c domain.Coach
	err := r.conn.NewSelect().
		Model(&c).
		Where("id = ?", coachID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Coach{}, notFound(err)
	}
	return c, nil
}

func (r reader) ListRules(ctx context.Context, coachID uuid.UUID, weekday int16, day time.Time) ([]domain.AvailabilityRule, error) {
	d := day.Format(domain.DateLayout)
	var rows []domain.AvailabilityRule
	err := r.conn.NewSelect().
		Model(&rows).
		Where("coach_id = ?", coachID).
		Where("weekday = ?", weekday).
		Where("(valid_from IS NULL OR valid_from <= ?::date)", d).
		Where("(valid_to IS NULL OR valid_to >= ?::date)", d).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r reader) ListExceptions(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.AvailabilityException, error) {
	var rows []domain.AvailabilityException
	err := r.conn.NewSelect().
		Model(&rows).
		Where("coach_id = ?", coachID).
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r reader) ListLiveBookings(ctx context.Context, coachID uuid.UUID, window domain.Interval) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.conn.NewSelect().
		Model(&rows).
		Where("coach_id = ?", coachID).
		Where("status IN (?)", bun.In(domain.LiveStatuses)).
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r agendaTx) CreateUser(ctx context.Context, user domain.AppUser) (domain.AppUser, error) {
	if _, err := r.tx.NewInsert().Model(&user).Exec(ctx); err != nil {
		return domain.AppUser{}, mapWriteError(err)
	}
	return user, nil
}

func (r agendaTx) CreateClient(ctx context.Context, client domain.Client) (domain.Client, error) {
	if _, err := r.tx.NewInsert().Model(&client).Exec(ctx); err != nil {
		return domain.Client{}, mapWriteError(err)
	}
	return client, nil
}

func (r agendaTx) UpsertService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	err := r.tx.NewInsert().
		Model(&svc).
		On("CONFLICT (name) DO UPDATE").
		Set("duration_minutes = EXCLUDED.duration_minutes").
		Set("price = EXCLUDED.price").
		Set("currency = EXCLUDED.currency").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Scan(ctx)
	if err != nil {
		return domain.Service{}, mapWriteError(err)
	}
	return svc, nil
}

func (r agendaTx) DeleteRules(ctx context.Context, coachID uuid.UUID) error {
	_, err := r.tx.NewDelete().
		Model((*domain.AvailabilityRule)(nil)).
		Where("coach_id = ?", coachID).
		Exec(ctx)
	return err
}

func (r agendaTx) CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	if _, err := r.tx.NewInsert().Model(&rule).Exec(ctx); err != nil {
		return domain.AvailabilityRule{}, mapWriteError(err)
	}
	return rule, nil
}

func (r agendaTx) CreateException(ctx context.Context, ex domain.AvailabilityException) (domain.AvailabilityException, error) {
	if _, err := r.tx.NewInsert().Model(&ex).Exec(ctx); err != nil {
		return domain.AvailabilityException{}, mapWriteError(err)
	}
	return ex, nil
}

func (r agendaTx) FindOverlappingException(ctx context.Context, coachID uuid.UUID, kind domain.ExceptionKind, span domain.Interval) (domain.AvailabilityException, error) {
	var ex domain.AvailabilityException
	err := r.tx.NewSelect().
		Model(&ex).
		Where("coach_id = ?", coachID).
		Where("kind = ?", kind).
		Where("start_at < ?", span.End).
		Where("end_at > ?", span.Start).
		OrderExpr("start_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.AvailabilityException{}, notFound(err)
	}
	return ex, nil
}

func (r agendaTx) FindOverlappingBooking(ctx context.Context, coachID uuid.UUID, span domain.Interval) (domain.Booking, error) {
	var b domain.Booking
	err := r.tx.NewSelect().
		Model(&b).
		Where("coach_id = ?", coachID).
		Where("status IN (?)", bun.In(domain.LiveStatuses)).
		Where("start_at < ?", span.End).
		Where("end_at > ?", span.Start).
		OrderExpr("start_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return b, nil
}

func (r agendaTx) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if _, err := r.tx.NewInsert().Model(&booking).Exec(ctx); err != nil {
		return domain.Booking{}, mapWriteError(err)
	}
	return booking, nil
}

func (r agendaTx) GetBookingForUpdate(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.tx.NewSelect().
		Model(&b).
		Where("id = ?", bookingID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return b, nil
}

func (r agendaTx) CancelBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	res, err := r.tx.NewUpdate().
		Model(&booking).
		Column("status", "cancelled_by_user_id", "cancelled_at", "cancel_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return booking, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapWriteError translates constraint violations into store sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		if pgErr.ConstraintName == bookingsNoOverlap {
			return store.ErrConflict
		}
	case pgUniqueViolation:
		return store.ErrConflict
	case pgForeignKeyViolation:
		return store.ErrNotFound
	}
	return err
}
