package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"messagerie/internal/config"
	"messagerie/internal/hub"
	"messagerie/internal/service"
	"messagerie/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // tighten for production deployments
	},
}

// inboundEvent is what clients send over the socket.
type inboundEvent struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Data  struct {
		RoomCode string `json:"roomCode"`
		Message  string `json:"message"`
	} `json:"data,omitempty"`
}

type WebSocketHandler struct {
	hub         *hub.Hub
	authService service.AuthService
	cfg         config.HubConfig
	log         logger.Logger
}

func NewWebSocketHandler(h *hub.Hub, authService service.AuthService, cfg config.HubConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         h,
		authService: authService,
		cfg:         cfg,
		log:         log,
	}
}

// HandleChat upgrades the connection and runs it as a chat session. The
// token is resolved once, before any room operation; a connection that fails
// resolution stays open but every join/submit is rejected.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	identity, err := h.authService.ResolveToken(c.Request.Context(), extractToken(c))
	if err != nil {
		identity = nil
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := h.hub.NewClient(identity)
	h.log.Debug("Connection established", "client", client.ID, "authenticated", identity != nil)

	go h.writePump(conn, client)
	h.readPump(c, conn, client)
}

// extractToken accepts the token either as a query parameter or as a Bearer
// header, since browser websocket clients cannot always set headers.
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// readPump decodes client events and dispatches them to the hub. It owns the
// session teardown: when the read loop ends, for whatever reason, membership
// is cleaned up synchronously before the goroutine exits.
func (h *WebSocketHandler) readPump(c *gin.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Disconnect(client)
		conn.Close()
		h.log.Debug("Connection closed", "client", client.ID)
	}()

	conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Unexpected close", "client", client.ID, "error", err)
			}
			return
		}

		var ev inboundEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			h.deliverError(client, "malformed event")
			continue
		}

		switch ev.Event {
		case "joinRoom":
			history, err := h.hub.Join(c.Request.Context(), client, ev.Room)
			if err != nil {
				h.deliverError(client, err.Error())
				continue
			}
			client.Deliver(hub.Event{Event: hub.EventRoomMessages, Data: history})

		case "leaveRoom":
			h.hub.Leave(client, ev.Room)

		case "sendMessage":
			if err := h.hub.Submit(client, ev.Data.RoomCode, ev.Data.Message); err != nil {
				h.deliverError(client, err.Error())
			}

		default:
			h.deliverError(client, "unknown event")
		}
	}
}

func (h *WebSocketHandler) deliverError(client *hub.Client, reason string) {
	client.Deliver(hub.Event{Event: hub.EventMessageError, Data: reason})
}

// writePump drains the session's outbound stream into the socket and keeps
// the connection alive with pings. It exits when the stream is closed.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(h.cfg.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Events():
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("Write failed", "client", client.ID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
