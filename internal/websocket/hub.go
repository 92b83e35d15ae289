package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/giftlist/internal/model"
)

// Message types pushed to list viewers.
const (
	TypeItemReserved      = "item_reserved"
	TypeItemStatusChanged = "item_status_changed"
	TypeItemCreated       = "item_created"
	TypeItemDeleted       = "item_deleted"
)

// Message is a live update for one list. Item is the guest-facing
// projection so reserver details never reach viewers.
type Message struct {
	Type   string            `json:"type"`
	ListID string            `json:"list_id"`
	ItemID string            `json:"item_id"`
	Item   *model.PublicItem `json:"item,omitempty"`
}

// ItemMessage builds a message carrying item's public fields.
func ItemMessage(typ string, item *model.Item) Message {
	pub := item.Public()
	return Message{Type: typ, ListID: item.ListID, ItemID: item.ID, Item: &pub}
}

// Hub tracks connected viewers per list and fans messages out to them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With("component", "websocket"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.listID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.listID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.listID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.listID)
	}
}

// Publish sends msg to every viewer of msg.ListID. Viewers whose buffer is
// full miss the message rather than stalling the publisher.
func (h *Hub) Publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[msg.ListID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropped message for slow client", "list_id", msg.ListID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of viewers of listID.
func (h *Hub) ClientCount(listID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[listID])
}
