// Package access resolves opaque caller identifiers into actors and checks
// what an actor may do.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

// Directory is the slice of the agenda store the resolver needs.
type Directory interface {
	store.ActorReader
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.AgendaTx) error) error
}

type Service struct {
	dir Directory
}

func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// ResolveActor loads the user behind externalID and the coach or client row it owns.
func (s *Service) ResolveActor(ctx context.Context, externalID string) (domain.Actor, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.Actor{}, domain.Forbidden(domain.CodeActorIdentityRequired)
	}
	u, err := s.dir.GetUserByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Actor{}, domain.Forbidden(domain.CodeActorNotRegistered)
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("load user: %w", err)
	}
	return buildActor(ctx, s.dir, u)
}

func buildActor(ctx context.Context, r store.ActorReader, u domain.AppUser) (domain.Actor, error) {
	role, err := domain.ParseRole(string(u.Role))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	a := domain.Actor{
		UserID:     u.ID,
		ExternalID: u.ExternalID,
		Role:       role,
		Status:     u.Status,
	}
	if u.FullName != nil {
		a.FullName = *u.FullName
	}

	switch role {
	case domain.RoleClient:
		c, err := r.GetClientByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.Actor{}, fmt.Errorf("load client: %w", err)
		}
		a.ClientID = c.ID
	case domain.RoleCoach:
		c, err := r.GetCoachByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.Actor{}, fmt.Errorf("load coach: %w", err)
		}
		a.CoachID = c.ID
	case domain.RoleAdmin:
	}
	return a, nil
}

// ResolveOrEnrollClient resolves externalID, registering an unknown caller as
// an active client. A client without a client row gets one.
func (s *Service) ResolveOrEnrollClient(ctx context.Context, externalID string) (domain.Actor, error) {
	actor, err := s.ResolveActor(ctx, externalID)
	var perr *domain.PermissionError
	switch {
	case err == nil:
		if actor.Role == domain.RoleClient && actor.ClientID == uuid.Nil && actor.Active() {
			return s.enroll(ctx, actor.ExternalID)
		}
		return actor, nil
	case errors.As(err, &perr) && perr.Code == domain.CodeActorNotRegistered:
		return s.enroll(ctx, strings.TrimSpace(externalID))
	default:
		return domain.Actor{}, err
	}
}

func (s *Service) enroll(ctx context.Context, externalID string) (domain.Actor, error) {
	var actor domain.Actor
	err := s.dir.InTransaction(ctx, func(ctx context.Context, tx store.AgendaTx) error {
		u, err := tx.GetUserByExternalID(ctx, externalID)
		if errors.Is(err, store.ErrNotFound) {
			u, err = tx.CreateUser(ctx, domain.AppUser{
				ExternalID: externalID,
				Role:       domain.RoleClient,
				Status:     domain.UserStatusActive,
			})
		}
		if err != nil {
			return err
		}
		if u.Role == domain.RoleClient {
			if _, err := tx.GetClientByUserID(ctx, u.ID); errors.Is(err, store.ErrNotFound) {
				if _, err := tx.CreateClient(ctx, domain.Client{UserID: u.ID}); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		actor, err = buildActor(ctx, tx, u)
		return err
	})
	if errors.Is(err, store.ErrConflict) {
		// Another request enrolled the same caller first.
		return s.ResolveActor(ctx, externalID)
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("enroll client: %w", err)
	}
	return actor, nil
}

// CheckViewer gates read-only requests that may carry an identity. An empty
// or unknown identifier is allowed; a blocked user is not.
func (s *Service) CheckViewer(ctx context.Context, externalID string) error {
	if strings.TrimSpace(externalID) == "" {
		return nil
	}
	actor, err := s.ResolveActor(ctx, externalID)
	var perr *domain.PermissionError
	if errors.As(err, &perr) && perr.Code == domain.CodeActorNotRegistered {
		return nil
	}
	if err != nil {
		return err
	}
	return RequireActive(actor)
}

func RequireActive(a domain.Actor) error {
	if !a.Active() {
		return domain.Forbidden(domain.CodeUserBlocked)
	}
	return nil
}

func RequireCoachOrAdmin(a domain.Actor) error {
	switch a.Role {
	case domain.RoleCoach, domain.RoleAdmin:
		return nil
	case domain.RoleClient:
		return domain.Forbidden(domain.CodeForbiddenRequiresCoach)
	default:
		return domain.Forbidden(domain.CodeForbiddenRequiresCoach)
	}
}

func RequireClient(a domain.Actor) error {
	switch a.Role {
	case domain.RoleClient:
		return nil
	case domain.RoleCoach, domain.RoleAdmin:
		return domain.Forbidden(domain.CodeForbiddenRequiresClient)
	default:
		return domain.Forbidden(domain.CodeForbiddenRequiresClient)
	}
}

// RequireCoachScope allows admins everywhere and coaches only on their own agenda.
func RequireCoachScope(a domain.Actor, coachID uuid.UUID) error {
	switch a.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCoach:
		if a.CoachID == uuid.Nil || a.CoachID != coachID {
			return domain.Forbidden(domain.CodeForbiddenOtherCoach)
		}
		return nil
	case domain.RoleClient:
		return domain.Forbidden(domain.CodeForbiddenRequiresCoach)
	default:
		return domain.Forbidden(domain.CodeForbiddenRequiresCoach)
	}
}

// Authorize resolves externalID and applies every guard in order.
func (s *Service) Authorize(ctx context.Context, externalID string, guards ...func(domain.Actor) error) (domain.Actor, error) {
	actor, err := s.ResolveActor(ctx, externalID)
	if err != nil {
		return domain.Actor{}, err
	}
	if err := RequireActive(actor); err != nil {
		return domain.Actor{}, err
	}
	for _, g := range guards {
		if err := g(actor); err != nil {
			return domain.Actor{}, err
		}
	}
	return actor, nil
}

// CoachScope adapts RequireCoachScope to Authorize.
func CoachScope(coachID uuid.UUID) func(domain.Actor) error {
	return func(a domain.Actor) error {
		return RequireCoachScope(a, coachID)
	}
}
