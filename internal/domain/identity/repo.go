package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActorRepository returns ErrActorNotFound for missing rows and
// ErrEmailTaken when Create hits the email uniqueness index.
type ActorRepository interface {
	Create(ctx context.Context, a *Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Actor, error)
	GetByEmail(ctx context.Context, email string) (*Actor, error)
	SearchCaregivers(ctx context.Context, query string, limit int) ([]*Actor, error)
	MarkEmergency(ctx context.Context, id uuid.UUID, at time.Time) (*Actor, error)
}

// DeviceTokenRepository is append-only. ActorIDByToken returns
// ErrInvalidDeviceToken when no token matches.
type DeviceTokenRepository interface {
	Add(ctx context.Context, actorID uuid.UUID, dt *DeviceToken) error
	ActorIDByToken(ctx context.Context, token string) (uuid.UUID, error)
	ListByActor(ctx context.Context, actorID uuid.UUID) ([]DeviceToken, error)
}
