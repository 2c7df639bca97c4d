package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/domain/location"
	"github.com/remora/remora/internal/domain/notification"
	"github.com/remora/remora/internal/platform/websocket"
)

type mockRepo struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*Alert
	order  []uuid.UUID
	err    error
	clock  time.Time
}

func newMockRepo() *mockRepo {
	return &mockRepo{alerts: make(map[uuid.UUID]*Alert), clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockRepo) Create(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	a.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	a.CreatedAt = m.clock
	cp := *a
	m.alerts[a.ID] = &cp
	m.order = append(m.order, a.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Alert, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*Alert
	for _, id := range m.order {
		a := m.alerts[id]
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.PatientIDs != nil && !containsID(f.PatientIDs, a.PatientID) {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) Acknowledge(_ context.Context, id uuid.UUID) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	a.IsAcknowledged = true
	cp := *a
	return &cp, nil
}

func (m *mockRepo) all() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Alert, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.alerts[id])
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type mockIdentities struct {
	mu      sync.Mutex
	actors  map[uuid.UUID]*identity.Actor
	devices map[string]uuid.UUID
	markErr error
}

func newMockIdentities(actors ...*identity.Actor) *mockIdentities {
	m := &mockIdentities{actors: make(map[uuid.UUID]*identity.Actor), devices: make(map[string]uuid.UUID)}
	for _, a := range actors {
		m.actors[a.ID] = a
	}
	return m
}

func (m *mockIdentities) ResolveDevice(_ context.Context, token string) (*identity.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.devices[token]
	if !ok {
		return nil, identity.ErrInvalidDeviceToken
	}
	cp := *m.actors[id]
	return &cp, nil
}

func (m *mockIdentities) GetActor(_ context.Context, id uuid.UUID) (*identity.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return nil, identity.ErrActorNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockIdentities) MarkEmergency(_ context.Context, id uuid.UUID, at time.Time) (*identity.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return nil, m.markErr
	}
	a, ok := m.actors[id]
	if !ok {
		return nil, identity.ErrActorNotFound
	}
	a.Status = identity.StatusEmergency
	a.EmergencyTriggeredAt = &at
	cp := *a
	return &cp, nil
}

func (m *mockIdentities) status(id uuid.UUID) (identity.Status, *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.actors[id]
	return a.Status, a.EmergencyTriggeredAt
}

// fakeGraph is patient -> caregivers, oldest link first.
type fakeGraph struct {
	links map[uuid.UUID][]uuid.UUID
	err   error
}

func (g *fakeGraph) CaregiverIDs(_ context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	if g.err != nil {
		return nil, g.err
	}
	return append([]uuid.UUID(nil), g.links[patientID]...), nil
}

func (g *fakeGraph) PatientIDs(_ context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	if g.err != nil {
		return nil, g.err
	}
	var out []uuid.UUID
	for patientID, caregivers := range g.links {
		if containsID(caregivers, caregiverID) {
			out = append(out, patientID)
		}
	}
	return out, nil
}

func (g *fakeGraph) IsLinked(_ context.Context, patientID, caregiverID uuid.UUID) (bool, error) {
	return containsID(g.links[patientID], caregiverID), nil
}

type fakeLocations struct {
	samples map[uuid.UUID]*location.Sample
	err     error
}

func (l *fakeLocations) LatestOf(_ context.Context, patientID uuid.UUID) (*location.Sample, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.samples[patientID], nil
}

type sentNotification struct {
	caregiverID uuid.UUID
	payload     notification.Payload
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentNotification
	failFor map[uuid.UUID]error
}

func (n *fakeNotifier) Create(_ context.Context, caregiverID uuid.UUID, p notification.Payload) (*notification.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[caregiverID]; err != nil {
		return nil, err
	}
	n.sent = append(n.sent, sentNotification{caregiverID: caregiverID, payload: p})
	return &notification.Notification{ID: uuid.New(), CaregiverID: caregiverID, Title: p.Title, Message: p.Message, Type: p.Type}, nil
}

func (n *fakeNotifier) forCaregiver(id uuid.UUID) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.caregiverID == id {
			out = append(out, s)
		}
	}
	return out
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

func (f *fakePublisher) published() []websocket.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]websocket.Event(nil), f.events...)
}

type countingRecorder struct {
	mu        sync.Mutex
	triggered map[string]int
	failures  int
}

func (r *countingRecorder) AlertTriggered(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.triggered == nil {
		r.triggered = make(map[string]int)
	}
	r.triggered[source]++
}

func (r *countingRecorder) NotificationFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func newPatient(name string) *identity.Actor {
	return &identity.Actor{ID: uuid.New(), Email: name + "@example.com", Name: name, Role: identity.RolePatient, Status: identity.StatusNormal}
}

func newCaregiver(name string) *identity.Actor {
	return &identity.Actor{ID: uuid.New(), Email: name + "@example.com", Name: name, Role: identity.RoleCaregiver, Status: identity.StatusNormal}
}

// fixture wires a Dispatcher and Service over the fakes.
type fixture struct {
	repo       *mockRepo
	identities *mockIdentities
	graph      *fakeGraph
	locations  *fakeLocations
	notifier   *fakeNotifier
	events     *fakePublisher
	recorder   *countingRecorder
	dispatcher *Dispatcher
	service    *Service
}

func newFixture(actors ...*identity.Actor) *fixture {
	f := &fixture{
		repo:       newMockRepo(),
		identities: newMockIdentities(actors...),
		graph:      &fakeGraph{links: make(map[uuid.UUID][]uuid.UUID)},
		locations:  &fakeLocations{samples: make(map[uuid.UUID]*location.Sample)},
		notifier:   &fakeNotifier{failFor: make(map[uuid.UUID]error)},
		events:     &fakePublisher{},
		recorder:   &countingRecorder{},
	}
	f.dispatcher = NewDispatcher(DispatcherDeps{
		Identities: f.identities,
		Caregivers: f.graph,
		Locations:  f.locations,
		Notifier:   f.notifier,
		Alerts:     f.repo,
		Events:     f.events,
		Recorder:   f.recorder,
		Logger:     zerolog.Nop(),
	})
	f.service = NewService(f.repo, f.graph, f.events, zerolog.Nop())
	return f
}

func (f *fixture) link(patient, caregiver *identity.Actor) {
	f.graph.links[patient.ID] = append(f.graph.links[patient.ID], caregiver.ID)
}
