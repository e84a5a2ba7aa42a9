package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"math-io-server/internal/room"
)

var ErrRoomNotFound = errors.New("ROOM_NOT_FOUND: Room does not exist")

// Registry is the table of live rooms. Lock order is registry before room.
type Registry struct {
	rooms map[string]*room.Room
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room.Room)}
}

// Create mints a room code and registers the room built by build.
func (rg *Registry) Create(build func(id string) *room.Room) *room.Room {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	id := GenerateRoomCode(func(code string) bool {
		_, taken := rg.rooms[code]
		return taken
	})
	r := build(id)
	rg.rooms[id] = r
	return r
}

func (rg *Registry) Get(id string) (*room.Room, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	r, ok := rg.rooms[NormalizeRoomCode(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Is reports whether id still maps to r.
func (rg *Registry) Is(id string, r *room.Room) bool {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.rooms[id] == r
}

// RemoveIfEmpty drops the room if it has no players. A removed room is closed
// so a join that raced the removal fails.
func (rg *Registry) RemoveIfEmpty(id string) bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	r, ok := rg.rooms[id]
	if !ok {
		return false
	}
	if !r.CloseIfEmpty() {
		return false
	}
	delete(rg.rooms, id)
	return true
}

// ReapIdle removes rooms that have been empty for longer than ttl.
func (rg *Registry) ReapIdle(ttl time.Duration, now time.Time) []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var reaped []string
	for id, r := range rg.rooms {
		idle, empty := r.IdleFor(now)
		if !empty || idle < ttl {
			continue
		}
		if r.CloseIfEmpty() {
			delete(rg.rooms, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

func (rg *Registry) Count() int {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return len(rg.rooms)
}

// PublicRooms lists public rooms ordered by id. With joinableOnly, full rooms
// are left out.
func (rg *Registry) PublicRooms(joinableOnly bool) []room.Summary {
	rg.mu.RLock()
	rooms := make([]*room.Room, 0, len(rg.rooms))
	for _, r := range rg.rooms {
		rooms = append(rooms, r)
	}
	rg.mu.RUnlock()

	out := make([]room.Summary, 0, len(rooms))
	for _, r := range rooms {
		s := r.Summary()
		if s.IsPrivate || (joinableOnly && s.Full()) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
