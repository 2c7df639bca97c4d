package location

import (
	"time"

	"github.com/google/uuid"
)

// Sample maps to the patient_location table. One live row per patient.
type Sample struct {
	PatientID  uuid.UUID `json:"patientId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Battery    *float64  `json:"battery,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ReportRequest is the inbound location ping. RecordedAt defaults to the
// receipt time when omitted.
type ReportRequest struct {
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Battery    *float64   `json:"battery,omitempty"`
	RecordedAt *time.Time `json:"recordedAt,omitempty"`
}
