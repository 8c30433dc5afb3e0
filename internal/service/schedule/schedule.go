// Package schedule maintains coach availability and the service catalog.
package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/service/access"
	"padelagenda/backend/internal/store"
)

type Repository interface {
	GetCoach(ctx context.Context, coachID uuid.UUID) (domain.Coach, error)
	ListCoaches(ctx context.Context, activeOnly bool) ([]store.CoachSummary, error)
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AgendaTx) error) error
	InCoachTransaction(ctx context.Context, coachID uuid.UUID, fn func(ctx context.Context, tx store.AgendaTx) error) error
}

type Service struct {
	repo   Repository
	access *access.Service
}

func NewService(repo Repository, acc *access.Service) *Service {
	return &Service{repo: repo, access: acc}
}

type RuleInput struct {
	Weekday     int16
	StartTime   string
	EndTime     string
	SlotMinutes int
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

type SetRulesInput struct {
	ActorID    string
	CoachID    uuid.UUID
	Rules      []RuleInput
	ReplaceAll bool
}

// SetAvailabilityRules adds rules to a coach, or replaces all of them when
// ReplaceAll is set. It returns how many rules were inserted.
func (s *Service) SetAvailabilityRules(ctx context.Context, in SetRulesInput) (int, error) {
	rules := make([]domain.AvailabilityRule, 0, len(in.Rules))
	for _, r := range in.Rules {
		rule, err := buildRule(in.CoachID, r)
		if err != nil {
			return 0, err
		}
		rules = append(rules, rule)
	}

	if _, err := s.access.Authorize(ctx, in.ActorID, access.RequireCoachOrAdmin, access.CoachScope(in.CoachID)); err != nil {
		return 0, err
	}
	if _, err := s.repo.GetCoach(ctx, in.CoachID); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.repo.InCoachTransaction(ctx, in.CoachID, func(ctx context.Context, tx store.AgendaTx) error {
		if in.ReplaceAll {
			if err := tx.DeleteRules(ctx, in.CoachID); err != nil {
				return err
			}
		}
		for _, rule := range rules {
			if _, err := tx.CreateRule(ctx, rule); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func buildRule(coachID uuid.UUID, in RuleInput) (domain.AvailabilityRule, error) {
	start, err := domain.ParseTimeOfDay(in.StartTime)
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	end, err := domain.ParseTimeOfDay(in.EndTime)
	if err != nil {
		return domain.AvailabilityRule{}, err
	}
	rule := domain.AvailabilityRule{
		CoachID:     coachID,
		Weekday:     in.Weekday,
		StartTime:   start,
		EndTime:     end,
		SlotMinutes: in.SlotMinutes,
		ValidFrom:   civil(in.ValidFrom),
		ValidTo:     civil(in.ValidTo),
	}
	if err := rule.Validate(); err != nil {
		return domain.AvailabilityRule{}, err
	}
	return rule, nil
}

func civil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.CivilDate(*t)
	return &d
}

type ExceptionInput struct {
	ActorID  string
	CoachID  uuid.UUID
	Kind     string
	StartUTC time.Time
	EndUTC   time.Time
	Reason   *string
}

func (s *Service) AddAvailabilityException(ctx context.Context, in ExceptionInput) (domain.AvailabilityException, error) {
	if _, err := s.access.Authorize(ctx, in.ActorID, access.RequireCoachOrAdmin, access.CoachScope(in.CoachID)); err != nil {
		return domain.AvailabilityException{}, err
	}
	kind, err := domain.ParseExceptionKind(strings.TrimSpace(in.Kind))
	if err != nil {
		return domain.AvailabilityException{}, err
	}
	if !in.EndUTC.After(in.StartUTC) {
		return domain.AvailabilityException{}, domain.Invalid("invalid_time_range")
	}
	if _, err := s.repo.GetCoach(ctx, in.CoachID); err != nil {
		return domain.AvailabilityException{}, err
	}

	var out domain.AvailabilityException
	err = s.repo.InCoachTransaction(ctx, in.CoachID, func(ctx context.Context, tx store.AgendaTx) error {
		ex, err := tx.CreateException(ctx, domain.AvailabilityException{
			CoachID: in.CoachID,
			Kind:    kind,
			StartAt: in.StartUTC.UTC(),
			EndAt:   in.EndUTC.UTC(),
			Reason:  optional(in.Reason),
		})
		out = ex
		return err
	})
	if err != nil {
		return domain.AvailabilityException{}, err
	}
	return out, nil
}

type ServiceInput struct {
	ActorID         string
	Name            string
	DurationMinutes int
	Price           decimal.NullDecimal
	Currency        *string
	Active          bool
}

// UpsertService creates a service or updates the one with the same name.
func (s *Service) UpsertService(ctx context.Context, in ServiceInput) (domain.Service, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Service{}, domain.Invalid("name is required")
	}
	if in.DurationMinutes < 1 || in.DurationMinutes > domain.MaxBookingMinutes {
		return domain.Service{}, domain.Invalid("duration_minutes must be between 1 and 1440")
	}
	if in.Price.Valid && in.Price.Decimal.IsNegative() {
		return domain.Service{}, domain.Invalid("price must not be negative")
	}
	currency := optional(in.Currency)
	if currency != nil {
		c := strings.ToUpper(*currency)
		if len(c) != 3 {
			return domain.Service{}, domain.Invalid("currency must be a 3 letter code")
		}
		currency = &c
	}

	if _, err := s.access.Authorize(ctx, in.ActorID, access.RequireCoachOrAdmin); err != nil {
		return domain.Service{}, err
	}

	price := in.Price
	if price.Valid {
		price.Decimal = price.Decimal.Round(2)
	}

	var out domain.Service
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.AgendaTx) error {
		svc, err := tx.UpsertService(ctx, domain.Service{
			Name:            name,
			DurationMinutes: in.DurationMinutes,
			Price:           price,
			Currency:        currency,
			Active:          in.Active,
		})
		out = svc
		return err
	})
	if err != nil {
		return domain.Service{}, err
	}
	return out, nil
}

func (s *Service) ListCoaches(ctx context.Context, activeOnly bool) ([]store.CoachSummary, error) {
	return s.repo.ListCoaches(ctx, activeOnly)
}

func (s *Service) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, activeOnly)
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
