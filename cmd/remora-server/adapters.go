package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/domain/alert"
	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/mqtt"
	"github.com/remora/remora/internal/platform/websocket"
)

// actorPrincipal reads the actor loaded by identity.SessionAuth.
func actorPrincipal(c echo.Context) (websocket.Principal, error) {
	a, err := identity.CurrentActor(c)
	if err != nil {
		return websocket.Principal{}, err
	}
	return websocket.Principal{ID: a.ID, Role: string(a.Role)}, nil
}

type linkChecker interface {
	IsLinked(ctx context.Context, patientID, caregiverID uuid.UUID) (bool, error)
}

// linkAuthorizer lets a caregiver join the channel of a patient it holds an
// ACTIVE link to. Patients joining their own channel never reach it.
type linkAuthorizer struct {
	links linkChecker
}

func (l linkAuthorizer) CanJoin(ctx context.Context, p websocket.Principal, patientID uuid.UUID) (bool, error) {
	if p.Role != string(identity.RoleCaregiver) {
		return false, nil
	}
	return l.links.IsLinked(ctx, patientID, p.ID)
}

type sosTrigger interface {
	Trigger(ctx context.Context, req alert.TriggerRequest) (*alert.TriggerResult, error)
}

// mqttTrigger feeds broker messages into the device-token trigger path.
func mqttTrigger(t sosTrigger) mqtt.HandlerFunc {
	return func(ctx context.Context, msg mqtt.SOSMessage) error {
		_, err := t.Trigger(ctx, alert.TriggerRequest{
			DeviceToken:     msg.DeviceToken,
			Device:          msg.Device,
			DeviceTimestamp: msg.Timestamp,
			Source:          alert.SourceMQTT,
		})
		return err
	}
}
