package relationship

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores care links. Insert must be atomic against concurrent
// inserts of the same pair: inserted reports whether this call created or
// reactivated the link.
type Repository interface {
	Insert(ctx context.Context, patientID, caregiverID uuid.UUID) (link *Link, inserted bool, err error)
	CaregiversOf(ctx context.Context, patientID uuid.UUID) ([]Member, error)
	PatientsOf(ctx context.Context, caregiverID uuid.UUID) ([]Member, error)
	IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error)
}
