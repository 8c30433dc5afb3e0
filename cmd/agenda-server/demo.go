package main

import (
	"context"

	"github.com/shopspring/decimal"

	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/store/memory"
)

const demoCoachActor = "demo-coach"

// seedDemo gives an in-memory server one coach with weekday mornings and
// evenings plus two lesson types.
func seedDemo(ctx context.Context, st *memory.Store, timezone string) (domain.Coach, error) {
	coach, err := st.SeedCoach(ctx, demoCoachActor, "Demo Coach", timezone)
	if err != nil {
		return domain.Coach{}, err
	}
	eur := "EUR"
	err = st.Seed(ctx, func(ctx context.Context, tx memory.Seeder) error {
		for weekday := int16(1); weekday <= 5; weekday++ {
			for _, window := range [][2]string{{"09:00", "13:00"}, {"17:00", "21:00"}} {
				_, err := tx.CreateRule(ctx, domain.AvailabilityRule{
					CoachID:     coach.ID,
					Weekday:     weekday,
					StartTime:   domain.MustTimeOfDay(window[0]),
					EndTime:     domain.MustTimeOfDay(window[1]),
					SlotMinutes: 60,
				})
				if err != nil {
					return err
				}
			}
		}
		services := []domain.Service{
			{Name: "Private lesson", DurationMinutes: 60, Price: decimal.NewNullDecimal(decimal.NewFromInt(40)), Currency: &eur, Active: true},
			{Name: "Clinic", DurationMinutes: 90, Price: decimal.NewNullDecimal(decimal.RequireFromString("25.50")), Currency: &eur, Active: true},
		}
		for _, svc := range services {
			if _, err := tx.UpsertService(ctx, svc); err != nil {
				return err
			}
		}
		return nil
	})
	return coach, err
}
