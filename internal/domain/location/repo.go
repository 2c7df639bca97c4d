package location

import (
	"context"

	"github.com/google/uuid"
)

// Repository keeps exactly one sample per patient. Latest returns nil, nil
// when no sample was ever stored.
type Repository interface {
	Upsert(ctx context.Context, s *Sample) error
	Latest(ctx context.Context, patientID uuid.UUID) (*Sample, error)
}
