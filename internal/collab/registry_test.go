package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabcore/realtime-platform/internal/model"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	room := r.GetOrCreate(model.EntityInvoice, "inv_1", "c1", now)
	assert.Equal(t, "invoice:inv_1", room.ID)
	assert.Equal(t, int64(0), room.Version)

	// second call returns the same room, company unchanged
	again := r.GetOrCreate(model.EntityInvoice, "inv_1", "c2", now.Add(time.Hour))
	assert.Equal(t, "c1", again.CompanyID)
	assert.Equal(t, now, again.LastActivity)
}

func TestRegistry_CopiesDoNotAlias(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.GetOrCreate(model.EntityProduct, "p1", "c1", now)

	require.NoError(t, r.with("product:p1", func(room *model.Room) error {
		room.ActiveUsers = append(room.ActiveUsers, model.RoomUser{
			UserID: "alice",
			Cursor: &model.Cursor{X: 1},
		})
		return nil
	}))

	got, ok := r.Get("product:p1")
	require.True(t, ok)

	// mutating the copy must not leak into registry state
	got.ActiveUsers[0].UserID = "mallory"
	got.ActiveUsers[0].Cursor.X = 99

	fresh, ok := r.Get("product:p1")
	require.True(t, ok)
	assert.Equal(t, "alice", fresh.ActiveUsers[0].UserID)
	assert.Equal(t, float64(1), fresh.ActiveUsers[0].Cursor.X)
}

func TestRegistry_WithRemoveIfEmpty(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate(model.EntitySale, "s1", "c1", time.Now())

	removed, err := r.withRemoveIfEmpty("sale:s1", func(room *model.Room) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, removed, "room with no members is removed")

	_, ok := r.Get("sale:s1")
	assert.False(t, ok)

	_, err = r.withRemoveIfEmpty("sale:s1", func(room *model.Room) error { return nil })
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.GetOrCreate(model.EntityInvoice, "a", "c1", now)
	r.GetOrCreate(model.EntityInvoice, "b", "c1", now)

	require.NoError(t, r.with("invoice:a", func(room *model.Room) error {
		room.ActiveUsers = append(room.ActiveUsers,
			model.RoomUser{UserID: "u1"},
			model.RoomUser{UserID: "u2"},
		)
		return nil
	}))

	rooms, users := r.Counts()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 2, users)
}
