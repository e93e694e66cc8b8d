package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the demo event stream
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected    = "connected"
	MsgTypeState        = "state"
	MsgTypeNotification = "notification"
	MsgTypePong         = "pong"
	MsgTypeError        = "error"
)

const wsWriteWait = 10 * time.Second

// WSMessage is the envelope of every event-stream message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandler streams a demo session's state and notifications
type WebSocketHandler struct {
	sessions SessionManager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates a new event stream handler
func NewWebSocketHandler(sessions SessionManager, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS is enforced by middleware
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger.Named("events"),
	}
}

// HandleEvents upgrades to a WebSocket, sends the current state, then a
// notification plus a fresh state for every notification the session emits.
func (wsh *WebSocketHandler) HandleEvents(c echo.Context) error {
	id := c.Param("id")
	snap, ok := wsh.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	notifications, cancel, err := wsh.sessions.Subscribe(id)
	if err != nil {
		return FromDomainError(err, id)
	}
	defer cancel()

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	wsh.logger.Debug("client connected", zap.String("session", id))

	// Reader: only pings are understood; a read error ends the stream.
	pings := make(chan struct{}, 4)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsh.logger.Debug("connection error", zap.String("session", id), zap.Error(err))
				}
				return
			}
			if msg.Type == MsgTypePing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	if err := wsh.send(ws, MsgTypeConnected, id, nil); err != nil {
		return nil
	}
	if err := wsh.send(ws, MsgTypeState, id, snap); err != nil {
		return nil
	}

	for {
		select {
		case <-closed:
			wsh.logger.Debug("client disconnected", zap.String("session", id))
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-pings:
			if err := wsh.send(ws, MsgTypePong, id, nil); err != nil {
				return nil
			}
		case n, ok := <-notifications:
			if !ok {
				// Session removed.
				_ = wsh.send(ws, MsgTypeError, id, NewNotFoundError("session", id))
				return nil
			}
			if err := wsh.send(ws, MsgTypeNotification, id, n); err != nil {
				return nil
			}
			if snap, ok := wsh.sessions.GetSession(id); ok {
				if err := wsh.send(ws, MsgTypeState, id, snap); err != nil {
					return nil
				}
			}
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msgType, id string, payload interface{}) error {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}

	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := ws.WriteJSON(msg); err != nil {
		wsh.logger.Debug("write failed", zap.String("session", id), zap.Error(err))
		return err
	}
	return nil
}
