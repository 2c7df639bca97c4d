package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

// Acknowledgement frame types.
const (
	frameJoined = "joined"
	frameLeft   = "left"
	frameError  = "error"
)

var (
	ErrJoinDenied     = errors.New("not allowed to join this channel")
	errUnknownAction  = errors.New("unknown action")
	errInvalidChannel = errors.New("invalid patientId")
)

// ClientMessage is sent by sessions to manage channel membership.
type ClientMessage struct {
	Action    string `json:"action"`
	PatientID string `json:"patientId"`
}

type ackFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

// Principal is the authenticated actor behind a session.
type Principal struct {
	ID   uuid.UUID
	Role string
}

// PrincipalFunc extracts the authenticated principal from a request.
type PrincipalFunc func(c echo.Context) (Principal, error)

// JoinAuthorizer decides whether a principal may join a patient's channel.
type JoinAuthorizer interface {
	CanJoin(ctx context.Context, p Principal, patientID uuid.UUID) (bool, error)
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the HTTP middleware.
	},
}

// WebSocketHandler handles HTTP-to-WebSocket upgrades and message routing.
type WebSocketHandler struct {
	hub       *Hub
	principal PrincipalFunc
	authz     JoinAuthorizer
	buffer    int
	logger    zerolog.Logger
}

// NewWebSocketHandler creates a handler bound to hub. Each session gets a
// Send buffer of buffer frames.
func NewWebSocketHandler(hub *Hub, principal PrincipalFunc, authz JoinAuthorizer, buffer int, logger zerolog.Logger) *WebSocketHandler {
	if buffer <= 0 {
		buffer = 64
	}
	return &WebSocketHandler{hub: hub, principal: principal, authz: authz, buffer: buffer, logger: logger}
}

// RegisterRoutes mounts GET /ws on g with the route-level middleware m,
// typically session authentication.
func (wsh *WebSocketHandler) RegisterRoutes(g *echo.Group, m ...echo.MiddlewareFunc) {
	g.GET("/ws", wsh.HandleConnect, m...)
}

// HandleConnect authenticates the request, upgrades it, registers the client
// with the hub and starts the read/write pumps.
func (wsh *WebSocketHandler) HandleConnect(c echo.Context) error {
	p, err := wsh.principal(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(p.ID, p.Role, wsh.buffer)
	wsh.hub.Register(client)

	wsh.logger.Debug().Str("client_id", client.ID).Str("actor_id", p.ID.String()).Msg("websocket session opened")

	// The request context ends when the handler returns.
	ctx := context.WithoutCancel(c.Request().Context())
	go wsh.writePump(client, ws)
	go wsh.readPump(ctx, client, p, ws)

	return nil
}

// ProcessMessage applies a client message and returns the acknowledgement
// frame to send back.
func (wsh *WebSocketHandler) ProcessMessage(ctx context.Context, client *Client, p Principal, msg ClientMessage) []byte {
	var ack ackFrame
	switch msg.Action {
	case ActionJoin, ActionLeave:
		patientID, err := uuid.Parse(msg.PatientID)
		if err != nil {
			ack = ackFrame{Type: frameError, Message: errInvalidChannel.Error()}
			break
		}
		channel := ChannelFor(patientID)
		if msg.Action == ActionLeave {
			wsh.hub.Leave(client, channel)
			ack = ackFrame{Type: frameLeft, Channel: channel}
			break
		}
		if err := wsh.authorizeJoin(ctx, p, patientID); err != nil {
			ack = ackFrame{Type: frameError, Channel: channel, Message: err.Error()}
			break
		}
		wsh.hub.Join(client, channel)
		ack = ackFrame{Type: frameJoined, Channel: channel}
	default:
		ack = ackFrame{Type: frameError, Message: errUnknownAction.Error()}
	}

	frame, _ := json.Marshal(ack)
	return frame
}

// authorizeJoin lets a patient into their own channel and defers every other
// case to the JoinAuthorizer.
func (wsh *WebSocketHandler) authorizeJoin(ctx context.Context, p Principal, patientID uuid.UUID) error {
	if p.ID == patientID {
		return nil
	}
	if wsh.authz == nil {
		return ErrJoinDenied
	}
	ok, err := wsh.authz.CanJoin(ctx, p, patientID)
	if err != nil {
		wsh.logger.Warn().Err(err).Str("actor_id", p.ID.String()).Msg("join authorization failed")
		return ErrJoinDenied
	}
	if !ok {
		return ErrJoinDenied
	}
	return nil
}

// readPump reads messages from the WebSocket connection and processes them.
func (wsh *WebSocketHandler) readPump(ctx context.Context, client *Client, p Principal, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
		wsh.logger.Debug().Str("client_id", client.ID).Msg("websocket session closed")
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			msg = ClientMessage{}
		}

		wsh.hub.SendDirect(client, wsh.ProcessMessage(ctx, client, p, msg))
	}
}

// writePump writes messages from the Send channel to the WebSocket connection.
func (wsh *WebSocketHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
