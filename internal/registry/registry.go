// Package registry implements the server-side room registry: client↔room
// membership, the persistent main channel invariant, and the transitions
// that keep both views consistent.
package registry

import (
	"sort"
	"sync"
)

// MainRoom is the literal id of the persistent channel every client is
// placed in on connect and on leave.
const MainRoom = "main"

// Registry holds the two consistent views of room membership, guarded by
// a single lock so a reader never observes one view mid-update relative
// to the other.
type Registry struct {
	mu              sync.RWMutex
	membersByClient map[string]string            // client_id -> room_id
	clientsByRoom   map[string]map[string]struct{} // room_id -> set<client_id>
}

// New returns a registry with only the main channel present.
func New() *Registry {
	return &Registry{
		membersByClient: make(map[string]string),
		clientsByRoom:   map[string]map[string]struct{}{MainRoom: {}},
	}
}

// Connect inserts a newly accepted client into the main channel.
func (r *Registry) Connect(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.membersByClient[clientID] = MainRoom
	r.clientsByRoom[MainRoom][clientID] = struct{}{}
}

// Join moves clientID into room, creating it if absent and destroying the
// previous room if it becomes empty and isn't main. An empty room name
// means main. Joining the room the client is already in is a no-op but
// still reports the resolved room name for the caller to reply SUCCESS
// with.
func (r *Registry) Join(clientID, room string) string {
	if room == "" {
		room = MainRoom
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.membersByClient[clientID]
	if ok && current == room {
		return room
	}
	if ok {
		r.removeFromRoomLocked(clientID, current)
	}
	if _, exists := r.clientsByRoom[room]; !exists {
		r.clientsByRoom[room] = make(map[string]struct{})
	}
	r.clientsByRoom[room][clientID] = struct{}{}
	r.membersByClient[clientID] = room
	return room
}

// Leave moves clientID back to main. A client with no recorded room
// (should never happen by invariant) is simply inserted into main.
func (r *Registry) Leave(clientID string) string {
	return r.Join(clientID, MainRoom)
}

// Disconnect removes clientID entirely, cleaning up an emptied non-main
// room.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.membersByClient[clientID]; ok {
		r.removeFromRoomLocked(clientID, room)
	}
	delete(r.membersByClient, clientID)
}

func (r *Registry) removeFromRoomLocked(clientID, room string) {
	members, ok := r.clientsByRoom[room]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 && room != MainRoom {
		delete(r.clientsByRoom, room)
	}
}

// RoomOf reports the room clientID currently belongs to.
func (r *Registry) RoomOf(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.membersByClient[clientID]
	return room, ok
}

// Peers returns the members of room excluding excludeID, snapshotted
// under the lock so the caller may safely iterate it after releasing,
// never sending while the lock is held.
func (r *Registry) Peers(room, excludeID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.clientsByRoom[room]
	out := make([]string, 0, len(members))
	for id := range members {
		if id != excludeID {
			out = append(out, id)
		}
	}
	return out
}

// CountConnected returns the number of clients known to the registry.
func (r *Registry) CountConnected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.membersByClient)
}

// CountInRoom returns the membership size of room (0 if it doesn't
// exist).
func (r *Registry) CountInRoom(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clientsByRoom[room])
}

// RoomSnapshot is one room's membership at the moment Snapshot ran.
type RoomSnapshot struct {
	RoomID  string
	Members []string
}

// Snapshot returns every room and its sorted membership, used to render
// LIST_ROOMS. Deterministic ordering (by room id, then by member id)
// makes the listing reproducible for tests and for callers comparing
// successive snapshots.
func (r *Registry) Snapshot() []RoomSnapshot {
	r.mu.RLock()
	out := make([]RoomSnapshot, 0, len(r.clientsByRoom))
	for room, members := range r.clientsByRoom {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, RoomSnapshot{RoomID: room, Members: ids})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
