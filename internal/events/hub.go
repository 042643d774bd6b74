package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Hub keeps the open websocket connections of every user. A user may be
// connected from several tabs or devices at once.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*conn]struct{}
	logger      *slog.Logger
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writes
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[string]map[*conn]struct{}),
		logger:      logger,
	}
}

// Register adds ws to the connections of userID.
func (h *Hub) Register(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.connections[userID]
	if !ok {
		set = make(map[*conn]struct{})
		h.connections[userID] = set
	}
	set[&conn{ws: ws}] = struct{}{}
	h.logger.Info("websocket registered", "user", userID, "connections", len(set))
}

// Unregister closes and drops ws from the connections of userID.
func (h *Hub) Unregister(userID string, ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[userID]
	for c := range set {
		if c.ws != ws {
			continue
		}
		c.ws.Close()
		delete(set, c)
		h.logger.Info("websocket unregistered", "user", userID, "connections", len(set))
	}
	if len(set) == 0 {
		delete(h.connections, userID)
	}
}

// IsOnline reports whether userID has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID]) > 0
}

// Send writes e to every connection of userID. Connections that fail are
// dropped; an error is returned only if no connection received the event.
func (h *Hub) Send(userID string, e Event) error {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.connections[userID]))
	for c := range h.connections[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("user %s is not connected", userID)
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	var errs []error
	for _, c := range conns {
		c.mu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.ws.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.Unregister(userID, c.ws)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(conns) {
		return fmt.Errorf("sending event: %w", errors.Join(errs...))
	}
	return nil
}

// Publish sends e to userID, ignoring users that are offline.
func (h *Hub) Publish(userID string, e Event) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.Send(userID, e); err != nil {
		h.logger.Warn("failed to publish event", "user", userID, "type", e.Type, "error", err)
	}
}
