package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRelayChannel is the Redis pub/sub channel shared by all nodes.
const DefaultRelayChannel = "remora:events"

// envelope carries an event between nodes tagged with its origin.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Relay fans events out across server nodes through Redis pub/sub. Local
// publishes go to the local hub immediately and are forwarded to Redis by a
// background loop; events from other nodes are replayed into the local hub.
type Relay struct {
	hub     *Hub
	client  *redis.Client
	channel string
	nodeID  string
	out     chan Event
	ready   chan struct{}
	logger  zerolog.Logger
}

// NewRelay creates a relay for hub. The forward queue holds queueSize events.
func NewRelay(hub *Hub, client *redis.Client, queueSize int, logger zerolog.Logger) *Relay {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Relay{
		hub:     hub,
		client:  client,
		channel: DefaultRelayChannel,
		nodeID:  uuid.NewString(),
		out:     make(chan Event, queueSize),
		ready:   make(chan struct{}),
		logger:  logger,
	}
}

// NodeID identifies this node in relayed envelopes.
func (r *Relay) NodeID() string { return r.nodeID }

// Ready is closed once the Redis subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Publish implements EventPublisher. It never blocks on Redis.
func (r *Relay) Publish(ctx context.Context, event Event) error {
	localErr := r.hub.Publish(ctx, event)
	select {
	case r.out <- event:
	default:
		r.hub.observer.Dropped(event.Type, "relay_queue_full", 1)
		r.logger.Warn().Str("event", event.Type).Msg("relay queue full, event not forwarded")
	}
	return localErr
}

// Run subscribes to the relay channel and forwards queued events until ctx
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)

	go r.forward(ctx)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.replay(ctx, msg.Payload)
		}
	}
}

func (r *Relay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.out:
			data, err := json.Marshal(envelope{Origin: r.nodeID, Event: event})
			if err != nil {
				r.logger.Error().Err(err).Msg("marshal relay envelope")
				continue
			}
			if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
				r.logger.Warn().Err(err).Str("event", event.Type).Msg("relay publish failed")
			}
		}
	}
}

func (r *Relay) replay(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn().Err(err).Msg("discarding malformed relay message")
		return
	}
	if env.Origin == r.nodeID {
		return
	}
	if _, ok := PatientFromChannel(env.Event.Channel); !ok {
		r.logger.Warn().Str("channel", env.Event.Channel).Msg("discarding relayed event for unknown channel")
		return
	}
	if err := r.hub.Publish(ctx, env.Event); err != nil {
		r.logger.Warn().Err(err).Str("event", env.Event.Type).Msg("relayed event dropped")
	}
}
