package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/easelhq/easel/backend/internal/presence"
	"github.com/easelhq/easel/backend/internal/session"
)

// Hub delivers events to the connections a room currently holds. Membership
// lives in the presence table; the hub only maps connection ids to live
// clients and writes into their buffered send channels. A slow or closed
// connection just misses the frame, it never holds up the rest of the room.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Client
	presence *presence.Table
}

func NewHub(table *presence.Table) *Hub {
	return &Hub{
		conns:    make(map[string]*Client),
		presence: table,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	count := len(h.conns)
	h.mu.Unlock()

	log.Printf("Client %s connected (total: %d)", c.id, count)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; ok {
		delete(h.conns, c.id)
		close(c.send)
	}
	count := len(h.conns)
	h.mu.Unlock()

	log.Printf("Client %s disconnected (total: %d)", c.id, count)
}

// Broadcast sends one event to every member of the room except excludeID.
// Pass an empty excludeID to reach every member, the sender included.
func (h *Hub) Broadcast(roomID, event string, data any, excludeID string) {
	payload, err := encodeEvent(event, data)
	if err != nil {
		log.Printf("Failed to encode %s broadcast for room %s: %v", event, roomID, err)
		return
	}

	members := h.presence.Members(roomID)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range members {
		if id == excludeID {
			continue
		}
		c, ok := h.conns[id]
		if !ok {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Fire and forget; the client is too slow to keep up
			log.Printf("Dropping %s frame for slow client %s", event, id)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func encodeEvent(event string, data any) ([]byte, error) {
	env := session.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
