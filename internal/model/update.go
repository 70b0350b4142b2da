package model

import (
	"time"
)

// ChangeType classifies a realtime update.
type ChangeType string

const (
	ChangeCreate  ChangeType = "create"
	ChangeUpdate  ChangeType = "update"
	ChangeDelete  ChangeType = "delete"
	ChangeComment ChangeType = "comment"
)

// Valid reports whether the change type is one of the known kinds.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreate, ChangeUpdate, ChangeDelete, ChangeComment:
		return true
	}
	return false
}

// Update is an immutable, versioned diff record. Version is assigned by
// the room at acceptance time and is strictly increasing per room.
// Updates are append-only and persisted externally for history/audit.
type Update struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"room_id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	CompanyID  string     `json:"company_id"`
	UserID     string     `json:"user_id"`
	ChangeType ChangeType `json:"change_type"`
	FieldName  string     `json:"field_name,omitempty"`
	OldValue   any        `json:"old_value,omitempty"`
	NewValue   any        `json:"new_value,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Version    int64      `json:"version"`

	// Stream sequence, populated on read from the update store.
	Sequence uint64 `json:"sequence,omitempty"`
}

// UpdateRequest is the payload submitted by an editing client.
type UpdateRequest struct {
	ChangeType ChangeType `json:"change_type"`
	FieldName  string     `json:"field_name,omitempty"`
	OldValue   any        `json:"old_value,omitempty"`
	NewValue   any        `json:"new_value,omitempty"`
}

// MessageType identifies a broadcast envelope kind.
type MessageType string

const (
	MessageUserJoined     MessageType = "presence/user_joined"
	MessageUserLeft       MessageType = "presence/user_left"
	MessageCursorMoved    MessageType = "presence/cursor_moved"
	MessageTypingChanged  MessageType = "presence/typing_changed"
	MessageEntityUpdated  MessageType = "entity/updated"
	MessageEntityLocked   MessageType = "entity/locked"
	MessageEntityUnlocked MessageType = "entity/unlocked"
)

// Envelope is a message published to a room's broadcast transport.
// Delivery is fire-and-forget; acknowledgement belongs to the fanout
// layer behind the Broadcaster interface.
type Envelope struct {
	Type      MessageType `json:"type"`
	RoomID    string      `json:"room_id"`
	UserID    string      `json:"user_id"`
	CompanyID string      `json:"company_id"`
	Data      any         `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ListUpdatesResponse is the response for listing a room's update history.
type ListUpdatesResponse struct {
	Updates      []Update `json:"updates"`
	HasMore      bool     `json:"has_more"`
	LastSequence uint64   `json:"last_sequence"`
}
