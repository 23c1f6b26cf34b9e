package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/transport"
)

// Envelope is the wire frame for every server-to-client event.
type Envelope struct {
	Event transport.Event `json:"event"`
	Data  any             `json:"data"`
}

const writeTimeout = 5 * time.Second

// Hub tracks the live websocket connection per player. A player has at most
// one; a second connection replaces the first.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	log   *logrus.Entry
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*websocket.Conn),
		log:   log.WithField("component", "hub"),
	}
}

// attach registers the connection and returns the one it displaced, if any.
func (h *Hub) attach(playerID string, c *websocket.Conn) *websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.conns[playerID]
	h.conns[playerID] = c
	return old
}

// detach removes the connection if it is still the player's current one.
func (h *Hub) detach(playerID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[playerID] == c {
		delete(h.conns, playerID)
	}
}

// Emit sends one event to the player. Offline players and AI seats simply
// have no connection; the event is dropped.
func (h *Hub) Emit(playerID string, event transport.Event, payload any) {
	h.mu.RLock()
	c := h.conns[playerID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c, Envelope{Event: event, Data: payload}); err != nil {
		h.log.WithError(err).WithField("player", playerID).Debug("dropping event, write failed")
	}
}
