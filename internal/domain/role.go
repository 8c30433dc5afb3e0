package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Role string

const (
	RoleClient Role = "client"
	RoleCoach  Role = "coach"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleClient, RoleCoach, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

type AppUser struct {
	bun.BaseModel `bun:"table:app_users"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	ExternalID string     `bun:"external_id,notnull"`
	Role       Role       `bun:"role,notnull"`
	Status     UserStatus `bun:"status,notnull"`
	FullName   *string    `bun:"full_name"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

func (u *AppUser) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &u.ID, &u.CreatedAt, &u.UpdatedAt)
}

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (c *Client) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Actor is a resolved caller identity together with the resource it owns:
// a client id for clients, a coach id for coaches, nothing for admins.
type Actor struct {
	UserID     uuid.UUID
	ExternalID string
	Role       Role
	Status     UserStatus
	FullName   string
	ClientID   uuid.UUID
	CoachID    uuid.UUID
}

func (a Actor) Active() bool {
	return a.Status == UserStatusActive
}

// stampModel assigns a v7 id and timestamps on insert and refreshes
// updated_at on update.
func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}
