package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// Socket is the write side of a client connection. *websocket.Conn satisfies
// it.
type Socket interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type connection struct {
	socket Socket
	roomID string // empty while in the lobby
}

// ConnectionManager owns every open socket and which room it belongs to. It
// implements room.Transport.
type ConnectionManager struct {
	connections  map[string]*connection // connectionID → socket + room
	mu           sync.RWMutex
	writeTimeout time.Duration
	log          zerolog.Logger
}

func NewConnectionManager(writeTimeout time.Duration, log zerolog.Logger) *ConnectionManager {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &ConnectionManager{
		connections:  make(map[string]*connection),
		writeTimeout: writeTimeout,
		log:          log.With().Str("component", "connections").Logger(),
	}
}

func (cm *ConnectionManager) AddConnection(id string, socket Socket) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = &connection{socket: socket}
}

// RemoveConnection forgets id and returns the room it was in, if any.
func (cm *ConnectionManager) RemoveConnection(id string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.connections[id]
	if !ok {
		return ""
	}
	delete(cm.connections, id)
	return c.roomID
}

func (cm *ConnectionManager) Attach(connID, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.connections[connID]; ok {
		c.roomID = roomID
	}
}

// Detach clears the membership only if connID is still associated with roomID.
func (cm *ConnectionManager) Detach(connID, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if c, ok := cm.connections[connID]; ok && c.roomID == roomID {
		c.roomID = ""
	}
}

func (cm *ConnectionManager) RoomOf(connID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if c, ok := cm.connections[connID]; ok {
		return c.roomID
	}
	return ""
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// GetConnection returns the socket for connectionID.
func (cm *ConnectionManager) GetConnection(connectionID string) Socket {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if c, ok := cm.connections[connectionID]; ok {
		return c.socket
	}
	return nil
}

func (cm *ConnectionManager) ToAll(event string, payload any) {
	cm.send(cm.targets(func(string, *connection) bool { return true }), event, payload)
}

func (cm *ConnectionManager) ToRoom(roomID, event string, payload any) {
	cm.send(cm.targets(func(_ string, c *connection) bool { return c.roomID == roomID }), event, payload)
}

func (cm *ConnectionManager) ToRoomExcept(roomID, exceptConnID, event string, payload any) {
	cm.send(cm.targets(func(id string, c *connection) bool {
		return c.roomID == roomID && id != exceptConnID
	}), event, payload)
}

func (cm *ConnectionManager) ToConn(connID, event string, payload any) {
	cm.send(cm.targets(func(id string, _ *connection) bool { return id == connID }), event, payload)
}

// CloseAll closes every socket with a going-away status.
func (cm *ConnectionManager) CloseAll(reason string) {
	for _, s := range cm.targets(func(string, *connection) bool { return true }) {
		s.socket.Close(websocket.StatusGoingAway, reason)
	}
}

type target struct {
	id     string
	socket Socket
}

func (cm *ConnectionManager) targets(match func(id string, c *connection) bool) []target {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]target, 0, len(cm.connections))
	for id, c := range cm.connections {
		if match(id, c) {
			out = append(out, target{id: id, socket: c.socket})
		}
	}
	return out
}

func (cm *ConnectionManager) send(targets []target, event string, payload any) {
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(ServerMessage{Type: event, Payload: payload})
	if err != nil {
		cm.log.Error().Err(err).Str("event", event).Msg("failed to marshal message")
		return
	}

	for _, t := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), cm.writeTimeout)
		if err := t.socket.Write(ctx, websocket.MessageText, data); err != nil {
			cm.log.Debug().Err(err).Str("conn_id", t.id).Str("event", event).Msg("write failed")
		}
		cancel()
	}
}
