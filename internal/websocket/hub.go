package websocket

import (
	"fmt"
	"sync"
)

// RoomAgents is the shared room every authenticated agent joins.
const RoomAgents = "agents"

func RoomForCustomer(customerID string) string {
	return "customer-" + customerID
}

func RoomForSession(sessionID string) string {
	return "session-" + sessionID
}

// RoomForAgent is the per-agent room targeted notifications land in.
func RoomForAgent(agentID string) string {
	return "agent-" + agentID
}

// Hub tracks connected clients and their room memberships. A single
// mutex guards all maps; handlers call into the hub from many
// goroutines, one per connection plus the Redis bridge.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
	rooms   map[string]map[string]*WSClient
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*WSClient),
		rooms:   make(map[string]map[string]*WSClient),
	}
}

func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	incConnections()
}

// Unregister removes the client from every room and closes its send
// channel. After this returns no broadcast can reach the client. The
// identity check makes a stale or repeated unregister a no-op instead
// of a double close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	current, known := h.clients[client.ID]
	known = known && current == client
	if known {
		delete(h.clients, client.ID)
		for roomID, members := range h.rooms {
			if _, ok := members[client.ID]; ok {
				delete(members, client.ID)
				if len(members) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}
		close(client.Send)
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	if known {
		decConnections()
		setRooms(roomCount)
	}
}

func (h *Hub) JoinRoom(roomID string, client *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*WSClient)
		h.rooms[roomID] = members
	}
	members[client.ID] = client
	roomCount := len(h.rooms)
	h.mu.Unlock()

	setRooms(roomCount)
}

func (h *Hub) LeaveRoom(roomID string, client *WSClient) {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	setRooms(roomCount)
}

func (h *Hub) InRoom(roomID, clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = members[clientID]
	return ok
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast delivers the envelope to every member of the room. A client
// whose send buffer is full is treated as gone and evicted, delivery to
// the others proceeds.
func (h *Hub) Broadcast(roomID string, envelope *Envelope) {
	h.mu.Lock()
	members := h.rooms[roomID]
	delivered := 0
	var evicted []*WSClient
	for _, client := range members {
		select {
		case client.Send <- envelope:
			delivered++
		default:
			evicted = append(evicted, client)
		}
	}
	h.mu.Unlock()

	if delivered > 0 {
		addDelivered(delivered)
	}
	for _, client := range evicted {
		h.Unregister(client)
	}
}

// SendTo delivers to a single connected client. The send happens under
// the read lock: Unregister needs the write lock to close the channel,
// so the channel cannot be closed out from under the send.
func (h *Hub) SendTo(clientID string, envelope *Envelope) error {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	if !ok {
		h.mu.RUnlock()
		return fmt.Errorf("client %s is not connected", clientID)
	}

	full := false
	select {
	case client.Send <- envelope:
	default:
		full = true
	}
	h.mu.RUnlock()

	if full {
		h.Unregister(client)
		return fmt.Errorf("client %s send buffer full", clientID)
	}
	addDelivered(1)
	return nil
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
