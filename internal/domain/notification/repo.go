package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// MarkRead sets is_read and keeps the first read_at.
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListFor returns a page ordered by created_at descending plus the total.
	ListFor(ctx context.Context, caregiverID uuid.UUID, limit, offset int) ([]*Notification, int, error)
}
