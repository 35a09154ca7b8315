package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Hub is the process-local slide-sync broadcaster. It groups live
// connections into rooms keyed by (material, course) and relays presenter
// events to room members. Rooms are created on first join and garbage
// collected when their last member leaves.
//
// Delivery is fire-and-forget: a member whose send queue is full simply
// misses the event, and a disconnected member is never an error for the
// sender.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Client
	rooms    map[string]map[*Client]struct{}
	lastPage map[string]int

	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:    make(map[string]*Client),
		rooms:    make(map[string]map[*Client]struct{}),
		lastPage: make(map[string]int),
		logger:   logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

// unregister drops the connection and removes it from every room it joined.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID)
	for key := range c.rooms {
		h.leaveLocked(c, key)
	}
}

// Join adds the connection to a room. Idempotent. A connection may hold one
// membership per open viewer tab, so multiple concurrent joins are allowed.
// The joiner is immediately sent the room's last broadcast page, if any, so
// a late join lands on the presenter's current slide.
func (h *Hub) Join(c *Client, roomKey string) {
	h.mu.Lock()
	members, ok := h.rooms[roomKey]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomKey] = members
	}
	members[c] = struct{}{}
	c.rooms[roomKey] = struct{}{}
	page, hasPage := h.lastPage[roomKey]
	h.mu.Unlock()

	h.logger.Debug("connection joined sync room",
		zap.String("connection_id", c.ID), zap.String("room", roomKey))

	if hasPage {
		c.send(EventSyncSlide, SyncSlidePayload{Page: page})
	}
}

// Leave removes the connection from a room. No-op for non-members.
func (h *Hub) Leave(c *Client, roomKey string) {
	h.mu.Lock()
	h.leaveLocked(c, roomKey)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Client, roomKey string) {
	members, ok := h.rooms[roomKey]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.rooms, roomKey)
	if len(members) == 0 {
		delete(h.rooms, roomKey)
		delete(h.lastPage, roomKey)
	}
}

// BroadcastPage relays a page change to every current room member except the
// sender and records it for late joiners.
func (h *Hub) BroadcastPage(roomKey, senderID string, page int) {
	h.mu.Lock()
	h.lastPage[roomKey] = page
	recipients := h.roomMembersLocked(roomKey, senderID)
	h.mu.Unlock()

	for _, member := range recipients {
		member.send(EventSyncSlide, SyncSlidePayload{Page: page})
	}
}

// BroadcastPointer relays pointer state to every current room member except
// the sender. Pointer events are not replayed to late joiners.
func (h *Hub) BroadcastPointer(roomKey, senderID string, p LaserPointPayload) {
	h.mu.RLock()
	recipients := h.roomMembersLocked(roomKey, senderID)
	h.mu.RUnlock()

	for _, member := range recipients {
		member.send(EventLaserPoint, p)
	}
}

// EmitProgress unicasts upload progress to the originating connection.
// Unknown connection ids are silently ignored; the uploader may have
// disconnected mid-conversion.
func (h *Hub) EmitProgress(connectionID string, current, total, percent int) {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.send(EventPDFProgress, ProgressPayload{Current: current, Total: total, Percent: percent})
}

func (h *Hub) roomMembersLocked(roomKey, senderID string) []*Client {
	members, ok := h.rooms[roomKey]
	if !ok {
		return nil
	}
	recipients := make([]*Client, 0, len(members))
	for member := range members {
		if member.ID == senderID {
			continue
		}
		recipients = append(recipients, member)
	}
	return recipients
}

// RoomSize reports the current member count of a room.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}
