// Package collab implements presence rooms and the collaboration
// session manager: join/leave, cursor and typing broadcast, versioned
// updates, and advisory entity locking.
package collab

import (
	"sync"
	"time"

	"github.com/collabcore/realtime-platform/internal/model"
)

// roomState pairs a room with the mutex that serializes all mutation of
// it. Join, leave, update, and lock operations on one room run under
// this mutex; operations on different rooms proceed in parallel.
type roomState struct {
	mu      sync.Mutex
	deleted bool
	room    model.Room
}

// Registry tracks live collaboration rooms keyed by entityType:entityId.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomState
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*roomState),
	}
}

// GetOrCreate returns the room for the entity, creating it with version
// 0 and no members if absent. Creation is idempotent; a second call for
// the same entity returns the existing room untouched.
func (r *Registry) GetOrCreate(entityType model.EntityType, entityID, companyID string, now time.Time) model.Room {
	id := model.RoomID(entityType, entityID)

	r.mu.Lock()
	rs, ok := r.rooms[id]
	if !ok {
		rs = &roomState{
			room: model.Room{
				ID:           id,
				EntityType:   entityType,
				EntityID:     entityID,
				CompanyID:    companyID,
				ActiveUsers:  []model.RoomUser{},
				LastActivity: now,
				Version:      0,
			},
		}
		r.rooms[id] = rs
	}
	r.mu.Unlock()

	rs.mu.Lock()
	defer rs.mu.Unlock()
	return cloneRoom(&rs.room)
}

// Get returns a copy of the room, or false if it does not exist.
func (r *Registry) Get(roomID string) (model.Room, bool) {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return model.Room{}, false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.deleted {
		return model.Room{}, false
	}
	return cloneRoom(&rs.room), true
}

// RoomIDs returns the ids of all live rooms.
func (r *Registry) RoomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Counts returns the number of live rooms and joined users across them.
func (r *Registry) Counts() (rooms, users int) {
	r.mu.RLock()
	states := make([]*roomState, 0, len(r.rooms))
	for _, rs := range r.rooms {
		states = append(states, rs)
	}
	r.mu.RUnlock()

	for _, rs := range states {
		rs.mu.Lock()
		if !rs.deleted {
			rooms++
			users += len(rs.room.ActiveUsers)
		}
		rs.mu.Unlock()
	}
	return rooms, users
}

// with runs fn while holding the room's mutex. Returns ErrRoomNotFound
// when the room is absent.
func (r *Registry) with(roomID string, fn func(*model.Room) error) error {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.deleted {
		return ErrRoomNotFound
	}
	return fn(&rs.room)
}

// withRemoveIfEmpty runs fn under the room's mutex and removes the room
// from the registry if fn leaves it without members. The map fetch path
// always releases the registry lock before taking a room mutex, so
// taking the registry lock here while holding the room mutex cannot
// deadlock.
func (r *Registry) withRemoveIfEmpty(roomID string, fn func(*model.Room) error) (removed bool, err error) {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false, ErrRoomNotFound
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.deleted {
		return false, ErrRoomNotFound
	}
	if err := fn(&rs.room); err != nil {
		return false, err
	}

	if len(rs.room.ActiveUsers) == 0 {
		rs.deleted = true
		r.mu.Lock()
		delete(r.rooms, roomID)
		r.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// cloneRoom copies a room so callers never alias registry-owned state.
func cloneRoom(room *model.Room) model.Room {
	out := *room
	out.ActiveUsers = make([]model.RoomUser, len(room.ActiveUsers))
	copy(out.ActiveUsers, room.ActiveUsers)
	for i := range out.ActiveUsers {
		if c := out.ActiveUsers[i].Cursor; c != nil {
			cc := *c
			out.ActiveUsers[i].Cursor = &cc
		}
	}
	return out
}
