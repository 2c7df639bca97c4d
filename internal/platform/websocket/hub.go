// Package websocket provides the real-time room broadcaster. Each patient
// owns one channel; caregiver sessions join channels over a WebSocket and
// receive the events published to them.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names delivered to sessions.
const (
	EventAlertNew    = "alert:new"
	EventLocationNew = "location:new"
	EventVoiceToggle = "device:voice_toggle"
)

const channelPrefix = "patient:"

// ErrQueueFull is returned by Publish when the delivery queue is saturated.
// The event is dropped.
var ErrQueueFull = errors.New("websocket: broadcast queue full")

// ChannelFor names the channel of a patient.
func ChannelFor(patientID uuid.UUID) string {
	return channelPrefix + patientID.String()
}

// PatientFromChannel is the inverse of ChannelFor.
func PatientFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// Event is the frame written to sessions.
type Event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event for channel.
func NewEvent(eventType, channel string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Channel: channel, Timestamp: time.Now().UTC(), Data: data}, nil
}

// EventPublisher defines the interface for publishing events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Observer receives hub activity counts. The metrics package implements it.
type Observer interface {
	SessionsChanged(n int)
	Delivered(eventType string, n int)
	Dropped(eventType, reason string, n int)
}

type nopObserver struct{}

func (nopObserver) SessionsChanged(int)         {}
func (nopObserver) Delivered(string, int)       {}
func (nopObserver) Dropped(string, string, int) {}

// Client represents a single live session.
type Client struct {
	ID      string
	ActorID uuid.UUID
	Role    string
	Send    chan []byte

	channels map[string]struct{} // guarded by hub.mu
}

// NewClient creates a client with a buffered Send channel.
func NewClient(actorID uuid.UUID, role string, buffer int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		ActorID:  actorID,
		Role:     role,
		Send:     make(chan []byte, buffer),
		channels: make(map[string]struct{}),
	}
}

type delivery struct {
	eventType string
	frame     []byte
	members   []*Client
}

// Hub tracks channel membership and fans published events out to members.
// Membership is mutated under mu. Publish snapshots the members and hands
// the frame to a single worker goroutine (Run), which keeps publish order
// per channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	all      map[*Client]struct{}

	queue    chan delivery
	observer Observer
	logger   zerolog.Logger
}

type Option func(*Hub)

func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a Hub whose delivery queue holds queueSize events.
func NewHub(queueSize int, opts ...Option) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	h := &Hub{
		channels: make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
		queue:    make(chan delivery, queueSize),
		observer: nopObserver{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if client.channels == nil {
		client.channels = make(map[string]struct{})
	}
	h.all[client] = struct{}{}
	n := len(h.all)
	h.mu.Unlock()

	h.observer.SessionsChanged(n)
}

// Unregister removes a client from every channel and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.all[client]; !ok {
		h.mu.Unlock()
		return
	}
	for channel := range client.channels {
		h.removeMemberLocked(client, channel)
	}
	delete(h.all, client)
	close(client.Send)
	n := len(h.all)
	h.mu.Unlock()

	h.observer.SessionsChanged(n)
}

// Join adds a registered client to channel. Joining twice is a no-op.
func (h *Hub) Join(client *Client, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return false
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.channels[channel] = struct{}{}
	return true
}

// Leave removes client from channel.
func (h *Hub) Leave(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeMemberLocked(client, channel)
}

func (h *Hub) removeMemberLocked(client *Client, channel string) {
	if members, ok := h.channels[channel]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.channels, channel)
}

// Publish implements EventPublisher. It never blocks: the member snapshot
// is taken now, so sessions that join afterwards do not receive the event,
// and the frame is queued for the worker. A full queue drops the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.channels[event.Channel]))
	for c := range h.channels[event.Channel] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return nil
	}

	select {
	case h.queue <- delivery{eventType: event.Type, frame: frame, members: members}:
		return nil
	default:
		h.observer.Dropped(event.Type, "queue_full", len(members))
		return ErrQueueFull
	}
}

// Run drains the delivery queue until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-h.queue:
			h.deliver(d)
		}
	}
}

// deliver does a non-blocking send to every member still registered. The
// read lock keeps Unregister from closing a Send channel mid-write.
func (h *Hub) deliver(d delivery) {
	delivered, dropped := 0, 0

	h.mu.RLock()
	for _, c := range d.members {
		if _, live := h.all[c]; !live {
			continue
		}
		select {
		case c.Send <- d.frame:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if delivered > 0 {
		h.observer.Delivered(d.eventType, delivered)
	}
	if dropped > 0 {
		h.observer.Dropped(d.eventType, "session_buffer_full", dropped)
		h.logger.Debug().Str("event", d.eventType).Int("dropped", dropped).Msg("session buffers full")
	}
}

// SendDirect writes a frame to a single client outside the channel queue,
// used for join acknowledgements. It reports false if the buffer is full.
func (h *Hub) SendDirect(client *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, live := h.all[client]; !live {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		return false
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

