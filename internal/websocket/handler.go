package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chathub/pkg/interfaces"
)

// WebSocket upgrader shared across handler instances.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is delegated to the reverse proxy in front of
		// the hub.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// FrameSink receives connection lifecycle events and inbound frames. The hub
// implements this; the handler stays free of protocol logic.
type FrameSink interface {
	// Connect announces a new connection, with the query token if one was
	// supplied at connect time (may be empty).
	Connect(conn interfaces.Connection, token string)

	// HandleFrame delivers one inbound text frame.
	HandleFrame(conn interfaces.Connection, data []byte)

	// Disconnect announces connection teardown. Idempotent.
	Disconnect(conn interfaces.Connection)
}

// Handler upgrades HTTP requests and pumps frames into the sink.
type Handler struct {
	sink         FrameSink
	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler feeding the given sink.
func NewHandler(sink FrameSink, pingInterval, readTimeout time.Duration) *Handler {
	return &Handler{
		sink:         sink,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket upgrades the request and runs the connection read loop.
// The authentication token may arrive as a query parameter here or later in
// an auth frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)
	token := r.URL.Query().Get("token")

	h.sink.Connect(wsConn, token)

	go h.readLoop(wsConn)
}

// readLoop reads frames until the connection dies, keeping the heartbeat
// alive with ping/pong deadlines.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.sink.Disconnect(conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error on connection %s: %v", conn.ID(), err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.sink.HandleFrame(conn, data)
		}
	}
}
