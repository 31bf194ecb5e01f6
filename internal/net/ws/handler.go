package ws

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"dicetable/server"
	"dicetable/server/internal/canvas"
	"dicetable/server/internal/telemetry"
)

type clientMessage struct {
	Ver        int           `json:"ver,omitempty"`
	Type       string        `json:"type"`
	Expression string        `json:"expression,omitempty"`
	Username   string        `json:"username,omitempty"`
	Color      string        `json:"color,omitempty"`
	Message    string        `json:"message,omitempty"`
	Event      *canvas.Event `json:"event,omitempty"`
	SentAt     int64         `json:"sentAt,omitempty"`
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades connections and runs the per-session read loop.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{hub: hub, logger: logger, upgrader: upgrader}
}

// Handle serves one websocket session: hello snapshot first, then the
// client command loop until the socket drops.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	sessionID := h.hub.EnsureSession(r.URL.Query().Get("session"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", sessionID, err)
		return
	}

	sub, ok := h.hub.Subscribe(sessionID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	if !h.sendJSON(sub, sessionID, h.hub.Hello(sessionID)) {
		h.hub.Disconnect(sessionID, "hello failed")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(sessionID, "read failure")
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sessionID, err)
			continue
		}

		switch msg.Type {
		case "roll":
			act, err := h.hub.RollDice(sessionID, msg.Expression)
			if err != nil {
				h.sendResult(sub, sessionID, "roll", false, err.Error(), nil)
				continue
			}
			h.sendResult(sub, sessionID, "roll", true, "", act)
		case "register":
			res := h.hub.RegisterUsername(sessionID, msg.Username)
			h.sendResult(sub, sessionID, "register", res.Success, res.Message, res)
		case "color":
			res := h.hub.SetColor(sessionID, msg.Color)
			h.sendResult(sub, sessionID, "color", res.Success, res.Message, res)
		case "chat":
			act, err := h.hub.SendChat(sessionID, msg.Message)
			if err != nil {
				h.sendResult(sub, sessionID, "chat", false, err.Error(), nil)
				continue
			}
			h.sendResult(sub, sessionID, "chat", true, "", act)
		case "canvasEvent":
			if msg.Event == nil {
				h.sendResult(sub, sessionID, "canvasEvent", false, "missing event", nil)
				continue
			}
			event, err := h.hub.PublishCanvasEvent(sessionID, *msg.Event)
			if err != nil {
				h.sendResult(sub, sessionID, "canvasEvent", false, err.Error(), nil)
				continue
			}
			h.sendResult(sub, sessionID, "canvasEvent", true, "", event)
		case "heartbeat":
			now := time.Now()
			rtt, ok := h.hub.UpdateHeartbeat(sessionID, now, msg.SentAt)
			if !ok {
				continue
			}
			h.sendJSON(sub, sessionID, server.HeartbeatMessage{
				Ver:        server.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			})
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, sessionID)
		}
	}
}

type sender interface {
	Send(data []byte) bool
}

// sendJSON queues a frame on the session's own send queue so replies keep
// their order relative to broadcasts.
func (h *Handler) sendJSON(sub sender, sessionID string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal response for %s: %v", sessionID, err)
		return false
	}
	if !sub.Send(data) {
		h.logger.Printf("dropping reply for %s: send queue full", sessionID)
		return false
	}
	return true
}

func (h *Handler) sendResult(sub sender, sessionID, command string, success bool, message string, payload any) {
	h.sendJSON(sub, sessionID, server.CommandResultMessage{
		Ver:     server.ProtocolVersion,
		Type:    "commandResult",
		Command: command,
		Success: success,
		Message: message,
		Payload: payload,
	})
}
