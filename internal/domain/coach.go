package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const DefaultLessonMinutes = 60

type Coach struct {
	bun.BaseModel `bun:"table:coaches,alias:coach"`

	ID                   uuid.UUID `bun:"id,pk,type:uuid"`
	UserID               uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Timezone             string    `bun:"timezone,notnull"`
	DefaultLessonMinutes int       `bun:"default_lesson_minutes,notnull"`
	CreatedAt            time.Time `bun:"created_at,notnull"`
	UpdatedAt            time.Time `bun:"updated_at,notnull"`
}

func (c *Coach) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// LessonDuration is the coach default, or DefaultLessonMinutes when unset.
func (c Coach) LessonDuration() time.Duration {
	if c.DefaultLessonMinutes < 1 {
		return DefaultLessonMinutes * time.Minute
	}
	return time.Duration(c.DefaultLessonMinutes) * time.Minute
}

// Service is a bookable lesson type.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID           `bun:"id,pk,type:uuid"`
	Name            string              `bun:"name,notnull"`
	DurationMinutes int                 `bun:"duration_minutes,notnull"`
	Price           decimal.NullDecimal `bun:"price,type:numeric(10,2)"`
	Currency        *string             `bun:"currency"`
	Active          bool                `bun:"is_active,notnull"`
	CreatedAt       time.Time           `bun:"created_at,notnull"`
	UpdatedAt       time.Time           `bun:"updated_at,notnull"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}
