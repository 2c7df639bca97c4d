package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/remora/remora/internal/domain/identity"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

const TypeSOS = "SOS"

// Trigger sources, used as the metrics label.
const (
	SourceSession = "session"
	SourceDevice  = "device"
	SourceUserID  = "user_id"
	SourceMQTT    = "mqtt"
)

// Alert maps to the alert table. Only IsAcknowledged changes after insert,
// and only from false to true.
type Alert struct {
	ID             uuid.UUID   `json:"id"`
	PatientID      uuid.UUID   `json:"patientId"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Type           string      `json:"type"`
	Severity       Severity    `json:"severity"`
	IsAcknowledged bool        `json:"isAcknowledged"`
	CaregiverIDs   []uuid.UUID `json:"caregiverIds"`
	Latitude       *float64    `json:"latitude,omitempty"`
	Longitude      *float64    `json:"longitude,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ListFilter narrows List. Nil fields are not applied.
type ListFilter struct {
	PatientID *uuid.UUID
	// PatientIDs restricts the result to these patients. An empty non-nil
	// slice matches nothing.
	PatientIDs []uuid.UUID
}

// CreateRequest is the body of POST /alerts.
type CreateRequest struct {
	PatientID string   `json:"patientId"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Type      string   `json:"type"`
	Severity  Severity `json:"severity,omitempty"`
}

// TriggerRequest carries one of three identities, checked in field order:
// a session actor, a device token, a raw patient id.
type TriggerRequest struct {
	Actor       *identity.Actor
	DeviceToken string
	PatientID   string

	Device string

	// DeviceTimestamp is the button's own clock reading. It is echoed back
	// and logged; server time is authoritative.
	DeviceTimestamp *int64

	// Source overrides the metrics label for device-token triggers.
	Source string
}

type TriggerResult struct {
	Success              bool            `json:"success"`
	Message              string          `json:"message"`
	UserID               uuid.UUID       `json:"userId"`
	Status               identity.Status `json:"status"`
	Device               string          `json:"device,omitempty"`
	DeviceTimestamp      *int64          `json:"deviceTimestamp,omitempty"`
	Timestamp            time.Time       `json:"timestamp"`
	EmergencyTriggeredAt time.Time       `json:"emergencyTriggeredAt"`
	CaregiversNotified   int             `json:"caregiversNotified"`
	AlertID              *uuid.UUID      `json:"alertId"`
}

// SOSRequest is the body a hardware button posts to /sos.
type SOSRequest struct {
	Type        string `json:"type"`
	Device      string `json:"device"`
	Timestamp   *int64 `json:"timestamp,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

type VoiceToggleRequest struct {
	Device      string `json:"device"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

type VoiceToggleResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
}
