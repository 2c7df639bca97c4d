package activity

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, a *Activity) error
	// List returns a page ordered by recorded_at descending plus the total.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Activity, int, error)
}
