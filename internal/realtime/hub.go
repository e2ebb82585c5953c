package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tableflow/internal/logger"
	"tableflow/pkg/metrics"
)

// Frame is what subscribers receive for every emitted event.
type Frame struct {
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewFrame(room, event string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return Frame{Room: room, Event: event, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

type Client struct {
	ID       string
	TenantID string
	Send     chan []byte

	rooms map[string]struct{}
}

func NewClient(id, tenantID string, buffer int) *Client {
	return &Client{
		ID:       id,
		TenantID: tenantID,
		Send:     make(chan []byte, buffer),
		rooms:    make(map[string]struct{}),
	}
}

// Hub tracks connected clients and their room memberships inside one
// process. Slow clients drop frames instead of blocking the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	logger  logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	metrics.RealtimeSessions.Set(float64(len(h.clients)))
}

// Unregister removes the client from every room and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	delete(h.clients, client.ID)
	close(client.Send)
	metrics.RealtimeSessions.Set(float64(len(h.clients)))
}

func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[client.ID] = client
	client.rooms[room] = struct{}{}
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *Hub) leaveLocked(client *Client, room string) {
	delete(client.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Deliver writes frame to every member of its room and returns how many
// clients received it.
func (h *Hub) Deliver(frame Frame) int {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warnw("Failed to encode realtime frame", "room", frame.Room, "event", frame.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.rooms[frame.Room] {
		select {
		case client.Send <- data:
			delivered++
		default:
			h.logger.Warnw("Dropping realtime frame for slow client", "client_id", client.ID, "room", frame.Room)
		}
	}
	return delivered
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LocalBroadcaster delivers straight into the hub of this process.
type LocalBroadcaster struct {
	hub *Hub
}

func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

func (b *LocalBroadcaster) Emit(_ context.Context, room, event string, payload any) error {
	frame, err := NewFrame(room, event, payload)
	if err != nil {
		return err
	}
	b.hub.Deliver(frame)
	return nil
}
