package memory

import (
	"context"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store"
)

// Seeder writes rows that the agenda itself never creates, such as coaches.
type Seeder interface {
	store.AgendaTx
	CreateCoach(ctx context.Context, coach domain.Coach) (domain.Coach, error)
}

// Seed runs fn in a transaction that can also provision coaches.
func (s *Store) Seed(ctx context.Context, fn func(ctx context.Context, tx Seeder) error) error {
	return s.InTransaction(ctx, func(ctx context.Context, t store.AgendaTx) error {
		return fn(ctx, t.(*tx))
	})
}

// SeedCoach creates an active coach user and its coach row.
func (s *Store) SeedCoach(ctx context.Context, externalID, fullName, timezone string) (domain.Coach, error) {
	var coach domain.Coach
	err := s.Seed(ctx, func(ctx context.Context, tx Seeder) error {
		u, err := tx.CreateUser(ctx, domain.AppUser{
			ExternalID: externalID,
			Role:       domain.RoleCoach,
			Status:     domain.UserStatusActive,
			FullName:   &fullName,
		})
		if err != nil {
			return err
		}
		coach, err = tx.CreateCoach(ctx, domain.Coach{
			UserID:               u.ID,
			Timezone:             timezone,
			DefaultLessonMinutes: domain.DefaultLessonMinutes,
		})
		return err
	})
	return coach, err
}

// SetUserStatus blocks or reactivates a user.
func (s *Store) SetUserStatus(ctx context.Context, externalID string, status domain.UserStatus) error {
	return s.Seed(ctx, func(ctx context.Context, seeder Seeder) error {
		u, err := seeder.GetUserByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		u.Status = status
		u.UpdatedAt = s.now()
		seeder.(*tx).st.users[u.ID] = u
		return nil
	})
}
