package location

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/platform/websocket"
)

type mockRepo struct {
	mu      sync.Mutex
	samples map[uuid.UUID]*Sample
	err     error
}

func newMockRepo() *mockRepo {
	return &mockRepo{samples: make(map[uuid.UUID]*Sample)}
}

func (m *mockRepo) Upsert(_ context.Context, s *Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *s
	m.samples[s.PatientID] = &cp
	return nil
}

func (m *mockRepo) Latest(_ context.Context, patientID uuid.UUID) (*Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.samples[patientID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []websocket.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e websocket.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func ptr(v float64) *float64 { return &v }

func newPatient() *identity.Actor {
	return &identity.Actor{ID: uuid.New(), Email: "p@example.com", Name: "Pat", Role: identity.RolePatient}
}

func TestReport_StoresAndPublishes(t *testing.T) {
	repo := newMockRepo()
	pub := &fakePublisher{}
	svc := NewService(repo, pub, zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	patient := newPatient()

	sample, err := svc.Report(context.Background(), patient, ReportRequest{Latitude: ptr(52.52), Longitude: ptr(13.405), Battery: ptr(81)})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !sample.RecordedAt.Equal(fixed) || !sample.ReceivedAt.Equal(fixed) {
		t.Fatalf("expected recordedAt to default to receipt time, got %v", sample.RecordedAt)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Type != websocket.EventLocationNew || evt.Channel != websocket.ChannelFor(patient.ID) {
		t.Fatalf("unexpected event %+v", evt)
	}
	var payload Sample
	if err := json.Unmarshal(evt.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Latitude != 52.52 || payload.Longitude != 13.405 || payload.PatientID != patient.ID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestReport_LastWriteWins(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakePublisher{}, zerolog.Nop())
	patient := newPatient()

	recent := time.Now().UTC()
	older := recent.Add(-time.Hour)
	reports := []ReportRequest{
		{Latitude: ptr(1), Longitude: ptr(1), RecordedAt: &recent},
		{Latitude: ptr(2), Longitude: ptr(2)},
		{Latitude: ptr(3), Longitude: ptr(3), RecordedAt: &older},
	}
	for _, r := range reports {
		if _, err := svc.Report(context.Background(), patient, r); err != nil {
			t.Fatalf("Report: %v", err)
		}
	}

	latest, err := svc.LatestOf(context.Background(), patient.ID)
	if err != nil {
		t.Fatalf("LatestOf: %v", err)
	}
	if latest.Latitude != 3 || !latest.RecordedAt.Equal(older) {
		t.Fatalf("expected last received sample to win, got %+v", latest)
	}
}

func TestReport_InvalidCoordinates(t *testing.T) {
	svc := NewService(newMockRepo(), &fakePublisher{}, zerolog.Nop())
	patient := newPatient()

	tests := []struct {
		name string
		req  ReportRequest
	}{
		{"missing lat", ReportRequest{Longitude: ptr(0)}},
		{"missing lng", ReportRequest{Latitude: ptr(0)}},
		{"lat too high", ReportRequest{Latitude: ptr(90.1), Longitude: ptr(0)}},
		{"lng too low", ReportRequest{Latitude: ptr(0), Longitude: ptr(-180.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Report(context.Background(), patient, tt.req)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestReport_BoundaryCoordinatesAccepted(t *testing.T) {
	svc := NewService(newMockRepo(), &fakePublisher{}, zerolog.Nop())
	if _, err := svc.Report(context.Background(), newPatient(), ReportRequest{Latitude: ptr(-90), Longitude: ptr(180)}); err != nil {
		t.Fatalf("expected boundary values to be accepted, got %v", err)
	}
}

func TestReport_CaregiverForbidden(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakePublisher{}, zerolog.Nop())
	caregiver := &identity.Actor{ID: uuid.New(), Role: identity.RoleCaregiver}

	_, err := svc.Report(context.Background(), caregiver, ReportRequest{Latitude: ptr(0), Longitude: ptr(0)})
	if !errors.Is(err, identity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(repo.samples) != 0 {
		t.Fatal("nothing should be stored for a caregiver")
	}
}

func TestReport_PublishFailureDoesNotFail(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &fakePublisher{err: websocket.ErrQueueFull}, zerolog.Nop())
	patient := newPatient()

	if _, err := svc.Report(context.Background(), patient, ReportRequest{Latitude: ptr(1), Longitude: ptr(1)}); err != nil {
		t.Fatalf("expected report to succeed despite broadcast failure, got %v", err)
	}
	if _, ok := repo.samples[patient.ID]; !ok {
		t.Fatal("expected sample to be stored")
	}
}

func TestReport_StoreFailureSkipsPublish(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")
	pub := &fakePublisher{}
	svc := NewService(repo, pub, zerolog.Nop())

	if _, err := svc.Report(context.Background(), newPatient(), ReportRequest{Latitude: ptr(1), Longitude: ptr(1)}); err == nil {
		t.Fatal("expected store error")
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing should be published when the store fails")
	}
}

func TestLatestOf_Absent(t *testing.T) {
	svc := NewService(newMockRepo(), nil, zerolog.Nop())
	s, err := svc.LatestOf(context.Background(), uuid.New())
	if err != nil || s != nil {
		t.Fatalf("expected nil, nil; got %v, %v", s, err)
	}
}
