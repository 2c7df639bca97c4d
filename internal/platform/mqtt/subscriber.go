// Package mqtt ingests SOS presses from buttons that publish to a broker
// instead of calling the HTTP endpoint.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	DefaultTopic   = "remora/devices/+/sos"
	defaultTimeout = 10 * time.Second
	retryInterval  = 5 * time.Second
	disconnectWait = 250 // ms
)

// SOSMessage is the payload a button publishes.
type SOSMessage struct {
	DeviceToken string `json:"deviceToken"`
	Device      string `json:"device"`
	Timestamp   *int64 `json:"timestamp,omitempty"`
	Topic       string `json:"-"`
}

// Handler processes one decoded SOS message.
type Handler interface {
	HandleSOS(ctx context.Context, msg SOSMessage) error
}

type HandlerFunc func(ctx context.Context, msg SOSMessage) error

func (f HandlerFunc) HandleSOS(ctx context.Context, msg SOSMessage) error { return f(ctx, msg) }

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
	// Timeout bounds the handling of a single message.
	Timeout time.Duration
}

type Subscriber struct {
	client  paho.Client
	opts    Options
	handler Handler
	logger  zerolog.Logger

	mu   sync.RWMutex
	base context.Context
}

func NewSubscriber(opts Options, handler Handler, logger zerolog.Logger) *Subscriber {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	s := &Subscriber{
		opts:    opts,
		handler: handler,
		logger:  logger.With().Str("component", "mqtt").Str("topic", opts.Topic).Logger(),
		base:    context.Background(),
	}
	s.client = paho.NewClient(s.clientOptions())
	return s
}

func (s *Subscriber) clientOptions() *paho.ClientOptions {
	o := paho.NewClientOptions()
	o.AddBroker(s.opts.BrokerURL)
	o.SetClientID(s.opts.ClientID)
	if s.opts.Username != "" {
		o.SetUsername(s.opts.Username)
	}
	if s.opts.Password != "" {
		o.SetPassword(s.opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(retryInterval)
	o.SetCleanSession(true)
	o.SetOrderMatters(false)
	// Subscriptions do not survive a clean-session reconnect.
	o.SetOnConnectHandler(func(c paho.Client) {
		if err := s.subscribe(c); err != nil {
			s.logger.Error().Err(err).Msg("resubscribe failed")
		}
	})
	o.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn().Err(err).Msg("broker connection lost")
	})
	return o
}

// Start connects in the background and returns immediately. An unreachable
// broker is retried until it answers or Stop is called; the subscription is
// made on every successful connect. Messages are handled under ctx.
func (s *Subscriber) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	token := s.client.Connect()
	s.logger.Info().Str("broker", s.opts.BrokerURL).Msg("mqtt ingest starting")
	go func() {
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Msg("mqtt connect failed")
				return
			}
			s.logger.Info().Msg("mqtt broker connected")
		case <-ctx.Done():
		}
	}()
}

func (s *Subscriber) subscribe(c paho.Client) error {
	if token := c.Subscribe(s.opts.Topic, s.opts.QoS, s.onMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.opts.Topic, token.Error())
	}
	return nil
}

// Stop disconnects, or abandons a connect still being retried.
func (s *Subscriber) Stop() {
	s.client.Disconnect(disconnectWait)
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	var m SOSMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.logger.Warn().Err(err).Str("msg_topic", msg.Topic()).Msg("malformed sos payload dropped")
		return
	}
	m.DeviceToken = strings.TrimSpace(m.DeviceToken)
	if m.DeviceToken == "" {
		s.logger.Warn().Str("msg_topic", msg.Topic()).Msg("sos payload without deviceToken dropped")
		return
	}
	m.Topic = msg.Topic()

	s.mu.RLock()
	base := s.base
	s.mu.RUnlock()
	ctx, cancel := context.WithTimeout(base, s.opts.Timeout)
	defer cancel()

	if err := s.handler.HandleSOS(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("msg_topic", m.Topic).Str("device", m.Device).Msg("sos message not handled")
	}
}
