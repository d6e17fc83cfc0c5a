package ws

import (
	"log"
	"sync"

	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/service"
)

// Hub is the connection registry. It maps each live connection to its
// authenticated identity and room binding, and implements service.Deliverer.
//
// Connections are keyed by connection id, not user id: one user may hold
// several tabs, each with its own connection and its own binding.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client            // conn id -> client
	byUser   map[string]map[string]*Client // user uid -> conn id -> client
	byRoom   map[uint64]map[string]*Client // room id -> conn id -> client
	presence service.PresenceService
}

func NewHub(presence service.PresenceService) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		byUser:   make(map[string]map[string]*Client),
		byRoom:   make(map[uint64]map[string]*Client),
		presence: presence,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	conns := h.byUser[c.Identity.UID]
	if conns == nil {
		conns = make(map[string]*Client)
		h.byUser[c.Identity.UID] = conns
	}
	conns[c.ID] = c
	h.mu.Unlock()
	if h.presence != nil {
		h.presence.MarkOnline(c.Identity.UID)
	}
	log.Printf("[ws] conn=%s uid=%s role=%s stage=register", c.ID, c.Identity.UID, c.Identity.Role)
}

// Unregister is idempotent and releases the room binding synchronously, so
// no broadcast started afterwards can target the dead connection. Read state
// is untouched.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c.ID]
	if known {
		delete(h.clients, c.ID)
		if conns := h.byUser[c.Identity.UID]; conns != nil {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.byUser, c.Identity.UID)
			}
		}
		if c.roomID != 0 {
			if conns := h.byRoom[c.roomID]; conns != nil {
				delete(conns, c.ID)
				if len(conns) == 0 {
					delete(h.byRoom, c.roomID)
				}
			}
			c.roomID = 0
		}
		c.closeSend()
	}
	h.mu.Unlock()
	if known {
		if h.presence != nil {
			h.presence.MarkOffline(c.Identity.UID)
		}
		log.Printf("[ws] conn=%s uid=%s stage=unregister", c.ID, c.Identity.UID)
	}
}

// Bind attaches the connection to a room, replacing any previous binding.
func (h *Hub) Bind(c *Client, roomID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, known := h.clients[c.ID]; !known {
		return
	}
	if c.roomID != 0 {
		if conns := h.byRoom[c.roomID]; conns != nil {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.byRoom, c.roomID)
			}
		}
	}
	c.roomID = roomID
	conns := h.byRoom[roomID]
	if conns == nil {
		conns = make(map[string]*Client)
		h.byRoom[roomID] = conns
	}
	conns[c.ID] = c
}

// ConnectionsFor returns the clients currently bound to a room.
func (h *Hub) ConnectionsFor(roomID uint64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.byRoom[roomID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) pushToRoom(roomID uint64, data []byte, excludeConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.byRoom[roomID] {
		if id == excludeConnID {
			continue
		}
		c.push(data)
	}
}

func (h *Hub) DeliverMessage(roomID uint64, msg *model.Message, excludeConnID string) {
	token := ""
	if msg.ClientToken != nil {
		token = *msg.ClientToken
	}
	data, err := NewWSMessage(TypeMessageNew, MessagePayload{Message: *msg, ClientToken: token})
	if err != nil {
		return
	}
	h.pushToRoom(roomID, data, excludeConnID)
}

func (h *Hub) DeliverPending(roomID uint64, p service.Pending) {
	data, err := NewWSMessage(TypeAssistantPending, AssistantPendingPayload{RoomID: roomID, Pending: p})
	if err != nil {
		return
	}
	h.pushToRoom(roomID, data, "")
}

func (h *Hub) ReplacePending(roomID uint64, placeholderID string, msg *model.Message) {
	data, err := NewWSMessage(TypeReplacePending, ReplacePendingPayload{
		RoomID:        roomID,
		PlaceholderID: placeholderID,
		Message:       msg,
	})
	if err != nil {
		return
	}
	h.pushToRoom(roomID, data, "")
}

func (h *Hub) NotifyUser(userUID string, n *model.Notification) bool {
	data, err := NewWSMessage(TypeNotification, NotificationPayload{
		Type:  n.Type,
		Title: n.Title,
		Body:  n.Body,
	})
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := false
	for _, c := range h.byUser[userUID] {
		if c.push(data) {
			delivered = true
		}
	}
	return delivered
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.closeSend()
		delete(h.clients, id)
	}
	h.byUser = make(map[string]map[string]*Client)
	h.byRoom = make(map[uint64]map[string]*Client)
}
