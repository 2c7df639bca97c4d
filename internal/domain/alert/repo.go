package alert

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	// List returns a page ordered by created_at descending plus the total.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Alert, int, error)
	Acknowledge(ctx context.Context, id uuid.UUID) (*Alert, error)
}
