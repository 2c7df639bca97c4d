package relationship

import (
	"time"

	"github.com/google/uuid"

	"github.com/remora/remora/internal/domain/location"
)

type LinkStatus string

const (
	LinkActive   LinkStatus = "ACTIVE"
	LinkInactive LinkStatus = "INACTIVE"
)

// Link maps to the care_link table. At most one row per unordered
// (patient, caregiver) pair.
type Link struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patientId"`
	CaregiverID uuid.UUID  `json:"caregiverId"`
	Status      LinkStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ConnectStatus string

const (
	StatusConnected        ConnectStatus = "CONNECTED"
	StatusAlreadyConnected ConnectStatus = "ALREADY_CONNECTED"
)

// ConnectRequest names the caregiver by email or actor id.
type ConnectRequest struct {
	CaregiverCode string `json:"caregiverCode"`
}

type ConnectResult struct {
	Status         ConnectStatus `json:"status"`
	Message        string        `json:"message"`
	CaregiverID    uuid.UUID     `json:"caregiverId"`
	CaregiverName  string        `json:"caregiverName"`
	CaregiverEmail string        `json:"caregiverEmail"`
}

type CaregiverSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type PatientSummary struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Status   string           `json:"status"`
	Location *location.Sample `json:"location"`
}

// Member is one side of an ACTIVE link joined with its actor row.
type Member struct {
	ActorID     uuid.UUID
	Name        string
	Email       string
	Status      string
	ConnectedAt time.Time
}
