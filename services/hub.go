package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns the in-process socket set and room membership for fan-out.
// Room state itself lives in the store; the hub only routes frames.
type Hub struct {
	registry Registry
	log      *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub(registry Registry, log *zap.SugaredLogger) *Hub {
	return &Hub{
		registry: registry,
		log:      log,
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *Hub) HandleWebSocket(d *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warnf("[WS] upgrade error: %v", err)
			return
		}

		client := &Client{
			socketID: uuid.NewString(),
			ip:       c.ClientIP(),
			conn:     conn,
			hub:      h,
			send:     make(chan []byte, 32),
			done:     make(chan struct{}),
		}

		h.mu.Lock()
		h.clients[client.socketID] = client
		total := len(h.clients)
		h.mu.Unlock()

		if err := h.registry.AddConnection(c.Request.Context(), 1); err != nil {
			h.log.Warnf("registry connection count: %v", err)
		}
		h.log.Infof("[WS] new client %s from %s (total=%d)", client.socketID, client.ip, total)

		client.Emit(EventWelcome, gin.H{"socketId": client.socketID})

		go client.writePump()
		go client.readPump(d)
	}
}

// remove detaches a client from the hub and the connection count.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.socketID)
	for roomID, members := range h.rooms {
		if _, ok := members[c.socketID]; ok {
			delete(members, c.socketID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	if err := h.registry.AddConnection(context.Background(), -1); err != nil {
		h.log.Warnf("registry connection count: %v", err)
	}
	c.Close()
}

// JoinRoom adds a socket to a room's fan-out set.
func (h *Hub) JoinRoom(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.socketID] = c
}

// LeaveRoom removes a socket from a room's fan-out set.
func (h *Hub) LeaveRoom(socketID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Client looks up a connected socket.
func (h *Hub) Client(socketID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[socketID]
}

// BroadcastRoom fans a named event out to every socket in the room.
// Members are snapshotted under the read lock; sends never block.
func (h *Hub) BroadcastRoom(roomID, name string, payload interface{}) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("broadcast encode %s: %v", name, err)
		return
	}
	frame, _ := json.Marshal(Event{Name: name, Payload: data})
	for _, c := range members {
		if !c.trySend(frame) {
			h.log.Warnf("[Room %s] dropping %s to %s", roomID, name, c.socketID)
		}
	}
}

// BroadcastState pushes the refreshed room snapshot to its members.
func (h *Hub) BroadcastState(room *models.Room) {
	h.BroadcastRoom(room.ID, EventRoomState, room)
}
