package activity

import (
	"time"

	"github.com/google/uuid"
)

// Activity is one entry in a patient's activity log, such as a step count
// or a medication taken.
type Activity struct {
	ID         uuid.UUID              `json:"id"`
	PatientID  uuid.UUID              `json:"patientId"`
	Kind       string                 `json:"kind"`
	Value      *float64               `json:"value,omitempty"`
	Unit       *string                `json:"unit,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	RecordedBy uuid.UUID              `json:"recordedBy"`
	RecordedAt time.Time              `json:"recordedAt"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// CreateRequest is the body of POST /activities. A patient may omit
// patientId; RecordedAt defaults to the receipt time.
type CreateRequest struct {
	PatientID  string                 `json:"patientId,omitempty"`
	Kind       string                 `json:"kind"`
	Value      *float64               `json:"value,omitempty"`
	Unit       *string                `json:"unit,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	RecordedAt *time.Time             `json:"recordedAt,omitempty"`
}

// ListQuery is the caller-facing filter of GET /activities.
type ListQuery struct {
	PatientID string
	Kind      string
	From      *time.Time
	To        *time.Time
}

// ListFilter narrows Repository.List. PatientIDs is always set by the
// service; an empty slice matches nothing.
type ListFilter struct {
	PatientIDs []uuid.UUID
	Kind       string
	From       *time.Time
	To         *time.Time
}
