package collab

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/logger"
	"github.com/collabcore/realtime-platform/pkg/metrics"
)

// SnapshotProvider fetches the current state of an entity from the data
// layer. Called once per join.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, entityType model.EntityType, entityID string) (model.Snapshot, error)
}

// UpdateStore persists accepted updates for history and audit.
type UpdateStore interface {
	Persist(ctx context.Context, update *model.Update) (uint64, error)
}

// Broadcaster delivers envelopes to a room's connected clients.
// Delivery is fire-and-forget; the manager logs failures and moves on.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, env *model.Envelope) error
}

// Options configures a session manager.
type Options struct {
	// MaxRoomSize caps concurrent members per room.
	MaxRoomSize int
	// InactivityTimeout is how long a silent user stays joined before
	// CleanupInactiveUsers evicts them.
	InactivityTimeout time.Duration
	// Now is the clock, injectable for tests. Nil means time.Now.
	Now func() time.Time
}

// Manager is the collaboration session manager. It owns the room
// registry and per-user connection tracking; snapshot fetch, update
// persistence, and broadcast delivery are injected collaborators.
type Manager struct {
	registry    *Registry
	snapshots   SnapshotProvider
	updates     UpdateStore
	broadcaster Broadcaster
	logger      *logger.Logger

	maxRoomSize       int
	inactivityTimeout time.Duration
	now               func() time.Time

	// userRooms tracks which rooms each user is joined to, for
	// disconnect handling.
	connMu    sync.Mutex
	userRooms map[string]map[string]struct{}
}

// NewManager creates a session manager.
func NewManager(snapshots SnapshotProvider, updates UpdateStore, broadcaster Broadcaster, log *logger.Logger, opts Options) *Manager {
	if opts.MaxRoomSize <= 0 {
		opts.MaxRoomSize = 50
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		registry:          NewRegistry(),
		snapshots:         snapshots,
		updates:           updates,
		broadcaster:       broadcaster,
		logger:            log,
		maxRoomSize:       opts.MaxRoomSize,
		inactivityTimeout: opts.InactivityTimeout,
		now:               opts.Now,
		userRooms:         make(map[string]map[string]struct{}),
	}
}

// CreateRoom returns the room for the entity, creating it if absent.
func (m *Manager) CreateRoom(ctx context.Context, entityType model.EntityType, entityID, companyID string) (model.Room, error) {
	if !entityType.Valid() {
		return model.Room{}, &ValidationError{Field: "entity_type", Reason: "unknown entity type"}
	}
	if entityID == "" {
		return model.Room{}, &ValidationError{Field: "entity_id", Reason: "must not be empty"}
	}

	room := m.registry.GetOrCreate(entityType, entityID, companyID, m.now())
	m.publishRoomCounts()
	return room, nil
}

// GetRoom returns a copy of the room, or ErrRoomNotFound.
func (m *Manager) GetRoom(ctx context.Context, roomID, companyID string) (model.Room, error) {
	room, ok := m.registry.Get(roomID)
	if !ok {
		return model.Room{}, ErrRoomNotFound
	}
	if room.CompanyID != companyID {
		return model.Room{}, ErrCompanyMismatch
	}
	return room, nil
}

// JoinRoom adds a user to a room, fetches the entity snapshot, and
// broadcasts a user_joined message. Rejoining replaces the user's prior
// membership entry so a room never lists the same user twice. The
// company check happens before any state change; a rejected join leaves
// the room untouched.
func (m *Manager) JoinRoom(ctx context.Context, roomID, userID, userName, userEmail, companyID, clientID string) (model.Room, model.Snapshot, error) {
	now := m.now()
	var joined model.Room

	err := m.registry.with(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}

		replaced := false
		for i := range room.ActiveUsers {
			if room.ActiveUsers[i].UserID == userID {
				room.ActiveUsers[i] = model.RoomUser{
					UserID:    userID,
					UserName:  userName,
					UserEmail: userEmail,
					ClientID:  clientID,
					JoinedAt:  room.ActiveUsers[i].JoinedAt,
					LastSeen:  now,
				}
				replaced = true
				break
			}
		}
		if !replaced {
			if len(room.ActiveUsers) >= m.maxRoomSize {
				return ErrRoomFull
			}
			room.ActiveUsers = append(room.ActiveUsers, model.RoomUser{
				UserID:    userID,
				UserName:  userName,
				UserEmail: userEmail,
				ClientID:  clientID,
				JoinedAt:  now,
				LastSeen:  now,
			})
		}
		room.LastActivity = now
		joined = cloneRoom(room)
		return nil
	})
	if err != nil {
		return model.Room{}, nil, err
	}

	m.trackUserRoom(userID, roomID)

	snapshot, err := m.snapshots.GetSnapshot(ctx, joined.EntityType, joined.EntityID)
	if err != nil {
		m.logger.Warn("snapshot fetch failed",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
		snapshot = model.Snapshot{}
	}

	m.broadcast(ctx, roomID, &model.Envelope{
		Type:      model.MessageUserJoined,
		RoomID:    roomID,
		UserID:    userID,
		CompanyID: companyID,
		Data: map[string]any{
			"user_name":    userName,
			"active_users": len(joined.ActiveUsers),
		},
		Timestamp: now,
	})
	m.publishRoomCounts()

	m.logger.Info("user joined room",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.Int("active_users", len(joined.ActiveUsers)),
	)
	return joined, snapshot, nil
}

// LeaveRoom removes the user from the room and deletes the room once it
// has no members. Leaving a room the user is not in is a no-op.
func (m *Manager) LeaveRoom(ctx context.Context, roomID, userID, companyID string) error {
	now := m.now()
	present := false

	removed, err := m.registry.withRemoveIfEmpty(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}
		for i := range room.ActiveUsers {
			if room.ActiveUsers[i].UserID == userID {
				room.ActiveUsers = append(room.ActiveUsers[:i], room.ActiveUsers[i+1:]...)
				present = true
				break
			}
		}
		if present && room.LockedBy == userID {
			room.Locked = false
			room.LockedBy = ""
		}
		room.LastActivity = now
		return nil
	})
	if err != nil {
		return err
	}

	m.untrackUserRoom(userID, roomID)

	if present {
		m.broadcast(ctx, roomID, &model.Envelope{
			Type:      model.MessageUserLeft,
			RoomID:    roomID,
			UserID:    userID,
			CompanyID: companyID,
			Timestamp: now,
		})
	}
	m.publishRoomCounts()

	if removed {
		m.logger.Info("room closed", zap.String("room_id", roomID))
	}
	return nil
}

// DisconnectUser leaves every room the user is joined to. Used when a
// client connection drops without explicit leave calls.
func (m *Manager) DisconnectUser(ctx context.Context, userID, companyID string) {
	m.connMu.Lock()
	rooms := make([]string, 0, len(m.userRooms[userID]))
	for roomID := range m.userRooms[userID] {
		rooms = append(rooms, roomID)
	}
	m.connMu.Unlock()

	for _, roomID := range rooms {
		if err := m.LeaveRoom(ctx, roomID, userID, companyID); err != nil {
			m.logger.Warn("disconnect leave failed",
				zap.String("room_id", roomID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
}

// ProcessUpdate accepts a realtime update, stamps it with the room's
// next version, persists it, and broadcasts it. Conflict handling is
// last-writer-wins at the room level; ordering is acceptance order,
// serialized per room.
//
// The version bump stands even when persistence fails: per-room version
// continuity matters more to connected clients than the audit trail,
// and the error is returned so the caller can retry or surface it.
func (m *Manager) ProcessUpdate(ctx context.Context, roomID, userID, companyID string, req model.UpdateRequest) (*model.Update, error) {
	if !req.ChangeType.Valid() {
		return nil, &ValidationError{Field: "change_type", Reason: "unknown change type"}
	}

	now := m.now()
	var update *model.Update

	err := m.registry.with(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}
		room.Version++
		room.LastActivity = now
		update = &model.Update{
			ID:         uuid.Must(uuid.NewV7()).String(),
			RoomID:     roomID,
			EntityType: room.EntityType,
			EntityID:   room.EntityID,
			CompanyID:  companyID,
			UserID:     userID,
			ChangeType: req.ChangeType,
			FieldName:  req.FieldName,
			OldValue:   req.OldValue,
			NewValue:   req.NewValue,
			CreatedAt:  now,
			Version:    room.Version,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordUpdate(companyID, string(req.ChangeType))

	seq, perr := m.updates.Persist(ctx, update)
	if perr != nil {
		m.logger.Error("update persistence failed",
			zap.String("room_id", roomID),
			zap.Int64("version", update.Version),
			zap.Error(perr),
		)
	} else {
		update.Sequence = seq
	}

	m.broadcast(ctx, roomID, &model.Envelope{
		Type:      model.MessageEntityUpdated,
		RoomID:    roomID,
		UserID:    userID,
		CompanyID: companyID,
		Data:      update,
		Timestamp: now,
	})

	return update, perr
}

// UpdateCursor records the user's cursor position and broadcasts a
// presence delta. A cursor event from a user not in the room is
// ignored, not an error.
func (m *Manager) UpdateCursor(ctx context.Context, roomID, userID, companyID string, cursor model.Cursor) error {
	return m.touchPresence(ctx, roomID, userID, companyID, model.MessageCursorMoved, func(u *model.RoomUser) any {
		c := cursor
		u.Cursor = &c
		return &c
	})
}

// UpdateTyping records the user's typing indicator and broadcasts a
// presence delta. Ignored when the user is not in the room.
func (m *Manager) UpdateTyping(ctx context.Context, roomID, userID, companyID string, isTyping bool) error {
	return m.touchPresence(ctx, roomID, userID, companyID, model.MessageTypingChanged, func(u *model.RoomUser) any {
		u.IsTyping = isTyping
		return map[string]bool{"is_typing": isTyping}
	})
}

func (m *Manager) touchPresence(ctx context.Context, roomID, userID, companyID string, msgType model.MessageType, mutate func(*model.RoomUser) any) error {
	now := m.now()
	var data any
	found := false

	err := m.registry.with(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}
		if u := room.User(userID); u != nil {
			data = mutate(u)
			u.LastSeen = now
			found = true
		}
		return nil
	})
	if err != nil || !found {
		return err
	}

	m.broadcast(ctx, roomID, &model.Envelope{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    userID,
		CompanyID: companyID,
		Data:      data,
		Timestamp: now,
	})
	return nil
}

// Lock acquires the advisory lock on the room's entity. Acquisition
// succeeds when the room is unlocked or the caller already holds the
// lock; a lock held by someone else yields false without error. The
// lock is a UI exclusivity hint only: ProcessUpdate never consults it.
func (m *Manager) Lock(ctx context.Context, roomID, userID, companyID string) (bool, error) {
	now := m.now()
	acquired := false

	err := m.registry.with(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}
		if room.Locked && room.LockedBy != userID {
			return nil
		}
		room.Locked = true
		room.LockedBy = userID
		room.LastActivity = now
		acquired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if acquired {
		m.broadcast(ctx, roomID, &model.Envelope{
			Type:      model.MessageEntityLocked,
			RoomID:    roomID,
			UserID:    userID,
			CompanyID: companyID,
			Timestamp: now,
		})
	}
	return acquired, nil
}

// Unlock releases the advisory lock. Only the holder may release it.
func (m *Manager) Unlock(ctx context.Context, roomID, userID, companyID string) (bool, error) {
	now := m.now()
	released := false

	err := m.registry.with(roomID, func(room *model.Room) error {
		if room.CompanyID != companyID {
			return ErrCompanyMismatch
		}
		if !room.Locked || room.LockedBy != userID {
			return nil
		}
		room.Locked = false
		room.LockedBy = ""
		room.LastActivity = now
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if released {
		m.broadcast(ctx, roomID, &model.Envelope{
			Type:      model.MessageEntityUnlocked,
			RoomID:    roomID,
			UserID:    userID,
			CompanyID: companyID,
			Timestamp: now,
		})
	}
	return released, nil
}

// CleanupInactiveUsers evicts every user whose last activity is older
// than the inactivity timeout, through the same path as LeaveRoom.
// Returns the number of evicted users. Run it on a periodic ticker; the
// manager does not schedule itself.
func (m *Manager) CleanupInactiveUsers(ctx context.Context) int {
	cutoff := m.now().Add(-m.inactivityTimeout)
	evicted := 0

	for _, roomID := range m.registry.RoomIDs() {
		room, ok := m.registry.Get(roomID)
		if !ok {
			continue
		}
		for _, u := range room.ActiveUsers {
			if u.LastSeen.Before(cutoff) {
				if err := m.LeaveRoom(ctx, roomID, u.UserID, room.CompanyID); err != nil {
					m.logger.Warn("inactive eviction failed",
						zap.String("room_id", roomID),
						zap.String("user_id", u.UserID),
						zap.Error(err),
					)
					continue
				}
				metrics.EvictionsTotal.Inc()
				evicted++
			}
		}
	}

	if evicted > 0 {
		m.logger.Info("evicted inactive users", zap.Int("count", evicted))
	}
	return evicted
}

// Counts reports live rooms and joined users.
func (m *Manager) Counts() (rooms, users int) {
	return m.registry.Counts()
}

func (m *Manager) broadcast(ctx context.Context, roomID string, env *model.Envelope) {
	if err := m.broadcaster.Broadcast(ctx, roomID, env); err != nil {
		metrics.BroadcastFailures.Inc()
		m.logger.Warn("broadcast failed",
			zap.String("room_id", roomID),
			zap.String("type", string(env.Type)),
			zap.Error(err),
		)
	}
}

func (m *Manager) trackUserRoom(userID, roomID string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if m.userRooms[userID] == nil {
		m.userRooms[userID] = make(map[string]struct{})
	}
	m.userRooms[userID][roomID] = struct{}{}
}

func (m *Manager) untrackUserRoom(userID, roomID string) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	if rooms := m.userRooms[userID]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.userRooms, userID)
		}
	}
}

func (m *Manager) publishRoomCounts() {
	rooms, users := m.registry.Counts()
	metrics.SetRoomCounts(rooms, users)
}
