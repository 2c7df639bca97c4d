package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remora/remora/internal/config"
	"github.com/remora/remora/internal/domain/alert"
	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/mqtt"
	"github.com/remora/remora/internal/platform/websocket"
)

func TestActorPrincipal(t *testing.T) {
	e := echo.New()
	a := &identity.Actor{ID: uuid.New(), Role: identity.RoleCaregiver}
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req = req.WithContext(identity.WithActor(req.Context(), a))

	p, err := actorPrincipal(e.NewContext(req, httptest.NewRecorder()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != a.ID || p.Role != "CAREGIVER" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := actorPrincipal(e.NewContext(httptest.NewRequest(http.MethodGet, "/ws", nil), httptest.NewRecorder())); err == nil {
		t.Fatal("expected an error without a session actor")
	}
}

type fakeLinks map[uuid.UUID]uuid.UUID // caregiver -> patient

func (f fakeLinks) IsLinked(_ context.Context, patientID, caregiverID uuid.UUID) (bool, error) {
	return f[caregiverID] == patientID, nil
}

func TestLinkAuthorizer(t *testing.T) {
	patient, caregiver, stranger := uuid.New(), uuid.New(), uuid.New()
	authz := linkAuthorizer{links: fakeLinks{caregiver: patient}}
	ctx := context.Background()

	tests := []struct {
		name string
		p    websocket.Principal
		want bool
	}{
		{"linked caregiver", websocket.Principal{ID: caregiver, Role: "CAREGIVER"}, true},
		{"unlinked caregiver", websocket.Principal{ID: stranger, Role: "CAREGIVER"}, false},
		{"other patient", websocket.Principal{ID: caregiver, Role: "PATIENT"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authz.CanJoin(ctx, tt.p, patient)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

type recordingTrigger struct {
	got alert.TriggerRequest
	err error
}

func (r *recordingTrigger) Trigger(_ context.Context, req alert.TriggerRequest) (*alert.TriggerResult, error) {
	r.got = req
	if r.err != nil {
		return nil, r.err
	}
	return &alert.TriggerResult{Success: true}, nil
}

func TestMQTTTrigger(t *testing.T) {
	rt := &recordingTrigger{}
	ts := int64(1700000000)
	h := mqttTrigger(rt)

	if err := h.HandleSOS(context.Background(), mqtt.SOSMessage{DeviceToken: "tok", Device: "ESP8266", Timestamp: &ts}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.got.DeviceToken != "tok" || rt.got.Source != alert.SourceMQTT || rt.got.Device != "ESP8266" || rt.got.DeviceTimestamp != &ts {
		t.Fatalf("unexpected trigger request: %+v", rt.got)
	}
	if rt.got.Actor != nil || rt.got.PatientID != "" {
		t.Fatal("mqtt must only use the device credential")
	}

	rt.err = identity.ErrInvalidDeviceToken
	if err := h.HandleSOS(context.Background(), mqtt.SOSMessage{DeviceToken: "bad"}); !errors.Is(err, identity.ErrInvalidDeviceToken) {
		t.Fatalf("expected the trigger error, got %v", err)
	}
}

func TestMigrationSource(t *testing.T) {
	entries, err := fs.Glob(migrationSource(""), "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}

	dir := t.TempDir()
	entries, err = fs.Glob(migrationSource(dir), "*.sql")
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected an empty directory source, got %v %v", entries, err)
	}
}

func TestMigrationsDir(t *testing.T) {
	cfg := &config.Config{MigrationsDir: "/etc/remora/migrations"}

	cmd := migrateCmd()
	up, _, err := cmd.Find([]string{"up"})
	if err != nil {
		t.Fatalf("find up: %v", err)
	}
	if got := migrationsDir(up, cfg); got != cfg.MigrationsDir {
		t.Fatalf("expected config dir, got %q", got)
	}
	if err := up.Flags().Set("dir", "./local"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := migrationsDir(up, cfg); got != "./local" {
		t.Fatalf("expected flag to win, got %q", got)
	}
}
