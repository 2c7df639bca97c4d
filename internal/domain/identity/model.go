package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient   Role = "PATIENT"
	RoleCaregiver Role = "CAREGIVER"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleCaregiver
}

type Status string

const (
	StatusNormal    Status = "NORMAL"
	StatusEmergency Status = "EMERGENCY"
)

// Device defaults applied when a registration omits them.
const (
	DefaultDeviceName = "ESP8266"
	DefaultDeviceKind = "esp8266"
)

// DeviceToken binds an opaque secret to an unattended device. The token
// itself is never serialized back to clients after registration.
type DeviceToken struct {
	Token        string    `json:"-"`
	Name         string    `json:"deviceName"`
	Kind         string    `json:"deviceType"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Actor maps to the actor table.
type Actor struct {
	ID                   uuid.UUID     `json:"id"`
	Email                string        `json:"email"`
	Name                 string        `json:"name"`
	PasswordHash         string        `json:"-"`
	Role                 Role          `json:"role"`
	Status               Status        `json:"status"`
	EmergencyTriggeredAt *time.Time    `json:"emergencyTriggeredAt,omitempty"`
	DeviceTokens         []DeviceToken `json:"devices,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// DisplayName falls back to the email when no name was given.
func (a *Actor) DisplayName() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.Email
}

type DeviceRegistration struct {
	Success     bool   `json:"success"`
	DeviceToken string `json:"deviceToken"`
	DeviceName  string `json:"deviceName"`
	DeviceType  string `json:"deviceType"`
	Message     string `json:"message"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by register and login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *Actor    `json:"user"`
}
