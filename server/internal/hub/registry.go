package hub

import (
	"sync"

	"github.com/feastline/feastline/pkg/types"
)

// Registry maps rooms to their member connections and back. Both directions
// of the index mutate together under one lock, so a connection never appears
// in a room's member set without the room appearing in the connection's room
// set, and vice versa.
//
// Rooms are created implicitly on first join and removed when their last
// member leaves. Registry is safe for concurrent use; the lock is held only
// for index mutations and snapshot copies, never across a network send.
type Registry struct {
	mu    sync.RWMutex
	rooms map[types.RoomKey]map[Conn]struct{}
	conns map[Conn]map[types.RoomKey]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[types.RoomKey]map[Conn]struct{}),
		conns: make(map[Conn]map[types.RoomKey]struct{}),
	}
}

// Register adds c to the connection table with no room memberships.
// Called on transport handshake; broadcast events reach registered
// connections even before their first join. Idempotent.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		r.conns[c] = make(map[types.RoomKey]struct{})
	}
}

// Join adds c to room, creating the room if it does not exist yet.
// Joining a room twice has no additional effect. A connection that was never
// registered is registered implicitly.
func (r *Registry) Join(c Conn, room types.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c]
	if !ok {
		set = make(map[types.RoomKey]struct{})
		r.conns[c] = set
	}
	set[room] = struct{}{}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Conn]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}
}

// Leave removes c from room. A no-op if c is not currently joined.
func (r *Registry) Leave(c Conn, room types.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, room)
}

// Remove drops c from every room it belongs to and from the connection
// table. Called on disconnect or heartbeat timeout. Safe to call while a
// fan-out pass holds a member snapshot that still includes c — the pass
// simply records a failed send for that connection.
func (r *Registry) Remove(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.conns[c] {
		r.leaveLocked(c, room)
	}
	delete(r.conns, c)
}

// leaveLocked removes both sides of one membership. Caller holds r.mu.
func (r *Registry) leaveLocked(c Conn, room types.RoomKey) {
	if set, ok := r.conns[c]; ok {
		delete(set, room)
	}
	if members, ok := r.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

// MembersOf returns a snapshot of room's current members. Connections that
// join after the snapshot is taken are not part of that delivery pass.
func (r *Registry) MembersOf(room types.RoomKey) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Conns returns a snapshot of every registered connection.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// RoomsOf returns a snapshot of the rooms c currently belongs to.
func (r *Registry) RoomsOf(c Conn) []types.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.RoomKey, 0, len(r.conns[c]))
	for room := range r.conns[c] {
		out = append(out, room)
	}
	return out
}

// ConnCount returns the number of registered connections.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RoomSizes returns a snapshot of member counts per room, keyed by the
// canonical "role:id" form. Used by the stats endpoint.
func (r *Registry) RoomSizes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for room, members := range r.rooms {
		out[room.String()] = len(members)
	}
	return out
}
