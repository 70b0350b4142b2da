// Package model defines data structures for the collaboration platform.
package model

import (
	"fmt"
	"time"
)

// EntityType identifies the kind of record a room collaborates on.
type EntityType string

const (
	EntityInvoice   EntityType = "invoice"
	EntitySale      EntityType = "sale"
	EntityProduct   EntityType = "product"
	EntityClient    EntityType = "client"
	EntityDashboard EntityType = "dashboard"
	EntityReport    EntityType = "report"
)

// Valid reports whether the entity type is one of the known kinds.
func (t EntityType) Valid() bool {
	switch t {
	case EntityInvoice, EntitySale, EntityProduct, EntityClient, EntityDashboard, EntityReport:
		return true
	}
	return false
}

// RoomID derives the deterministic room identifier for an entity.
func RoomID(entityType EntityType, entityID string) string {
	return fmt.Sprintf("%s:%s", entityType, entityID)
}

// Cursor is a user's pointer position within the edited entity.
type Cursor struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Field string  `json:"field,omitempty"`
}

// RoomUser is one participant of a collaboration room. It is owned
// exclusively by its room; LastSeen drives inactivity eviction.
type RoomUser struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	ClientID  string    `json:"client_id"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
	Cursor    *Cursor   `json:"cursor,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
}

// Room is one live editing session for one entity. CompanyID is the
// tenant boundary and never changes after creation; Version only
// increases; at most one user holds the advisory lock.
type Room struct {
	ID           string     `json:"id"`
	EntityType   EntityType `json:"entity_type"`
	EntityID     string     `json:"entity_id"`
	CompanyID    string     `json:"company_id"`
	ActiveUsers  []RoomUser `json:"active_users"`
	LastActivity time.Time  `json:"last_activity"`
	Version      int64      `json:"version"`
	Locked       bool       `json:"locked"`
	LockedBy     string     `json:"locked_by,omitempty"`
}

// User returns the membership entry for userID, or nil.
func (r *Room) User(userID string) *RoomUser {
	for i := range r.ActiveUsers {
		if r.ActiveUsers[i].UserID == userID {
			return &r.ActiveUsers[i]
		}
	}
	return nil
}

// Snapshot is the current state of the edited entity, fetched from the
// data layer when a user joins. The shape is entity-specific.
type Snapshot map[string]any

// JoinRoomRequest is the request to join a collaboration room.
type JoinRoomRequest struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	UserName   string     `json:"user_name"`
	UserEmail  string     `json:"user_email"`
	ClientID   string     `json:"client_id"`
}

// JoinRoomResponse is returned to a user that joined a room.
type JoinRoomResponse struct {
	Room     *Room    `json:"room"`
	Snapshot Snapshot `json:"snapshot"`
}

// CursorRequest updates the caller's cursor position in a room.
type CursorRequest struct {
	Cursor Cursor `json:"cursor"`
}

// TypingRequest updates the caller's typing indicator in a room.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// LockResponse reports the outcome of a lock or unlock attempt.
type LockResponse struct {
	Acquired bool   `json:"acquired"`
	LockedBy string `json:"locked_by,omitempty"`
}
