package services

import (
	"encoding/json"
	"sync"
	"time"

	"chatserver/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 64 * 1024
)

// wireFrame is the JSON frame exchanged with websocket clients in both
// directions. Inbound payloads stay raw until the event handler decodes them.
type wireFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Client is one live websocket connection. A user may hold several at once
// (one per device); each tracks its own room subscriptions.
type Client struct {
	UserID   uint
	Username string

	conn  *websocket.Conn
	send  chan []byte
	rooms map[uint]bool
}

// Hub is the in-process connection registry. It never talks to Redis: events
// arrive through Dispatch, which the relay calls for every published event,
// local or remote. Delivery to a slow client is dropped rather than letting
// one connection stall the rest.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     logger.Module("hub"),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) joinRoom(c *Client, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.rooms[roomID] = true
}

func (h *Hub) inRoom(c *Client, roomID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.rooms[roomID]
}

// LocalClients reports how many connections this instance currently holds.
func (h *Hub) LocalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectionsFor reports how many live connections a user has on this
// instance. Presence is global; this only answers for the local process.
func (h *Hub) ConnectionsFor(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// Dispatch delivers one relay event to the matching local connections.
// Room zero means global. The excluded user is skipped on every instance so
// an event's originator never hears an echo.
func (h *Hub) Dispatch(ev RelayEvent) {
	data, err := json.Marshal(outFrame{Event: ev.Event, Payload: ev.Payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.Event).Msg("marshal outbound frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if ev.ExcludeUserID != 0 && c.UserID == ev.ExcludeUserID {
			continue
		}
		if ev.Room != 0 && !c.rooms[ev.Room] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn().Uint("user_id", c.UserID).Str("event", ev.Event).Msg("dropping frame for slow client")
		}
	}
}

// sendDirect queues a frame for a single connection, bypassing the relay.
// Used for handshake snapshots and per-client error frames.
func (h *Hub) sendDirect(c *Client, event string, payload interface{}) {
	data, err := json.Marshal(outFrame{Event: event, Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
