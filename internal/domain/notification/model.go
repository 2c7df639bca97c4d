package notification

import (
	"time"

	"github.com/google/uuid"
)

// Type values used by the dispatcher. Manually created notifications may
// carry any non-empty type.
const (
	TypeSOS  = "SOS"
	TypeInfo = "INFO"
)

// Notification maps to the notification table. IsRead only moves from
// false to true.
type Notification struct {
	ID                 uuid.UUID  `json:"id"`
	CaregiverID        uuid.UUID  `json:"caregiverId"`
	Title              string     `json:"title"`
	Message            string     `json:"message"`
	Type               string     `json:"type"`
	IsRead             bool       `json:"isRead"`
	RelatedPatientID   *uuid.UUID `json:"relatedPatientId,omitempty"`
	RelatedPatientName string     `json:"relatedPatientName,omitempty"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ReadAt             *time.Time `json:"readAt,omitempty"`
}

// Payload is the content of a new notification.
type Payload struct {
	Title              string
	Message            string
	Type               string
	RelatedPatientID   *uuid.UUID
	RelatedPatientName string
	Latitude           *float64
	Longitude          *float64
}

// CreateRequest is the body of POST /notifications.
type CreateRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}
