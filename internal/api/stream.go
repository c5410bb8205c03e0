package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// streamClient is one connected dashboard.
type streamClient struct {
	send chan []byte
}

// StreamHub fans disposition events out to every connected websocket
// client. There is a single feed; clients that fall behind miss events
// rather than stalling the rest.
type StreamHub struct {
	logger  *logrus.Logger
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewStreamHub creates an empty hub.
func NewStreamHub(logger *logrus.Logger) *StreamHub {
	return &StreamHub{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// HandleEvent broadcasts one disposition event to all clients. It
// satisfies the event bus handler signature.
func (h *StreamHub) HandleEvent(event domain.DispositionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to marshal disposition event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used during server shutdown.
func (h *StreamHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *StreamHub) register(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *StreamHub) unregister(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

// handleStream upgrades the connection and pumps disposition events to
// the client until it disconnects. Inbound messages are discarded; the
// stream is broadcast-only.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := &streamClient{send: make(chan []byte, 256)}
	s.hub.register(client)

	go s.writePump(client, conn)
	go s.readPump(client, conn)
}

func (s *Server) writePump(client *streamClient, conn *websocket.Conn) {
	defer conn.Close()

	for message := range client.send {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

func (s *Server) readPump(client *streamClient, conn *websocket.Conn) {
	defer func() {
		s.hub.unregister(client)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
