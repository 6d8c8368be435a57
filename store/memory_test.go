package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

func newRoom(id string) *models.Room {
	return &models.Room{
		ID:           id,
		Phase:        models.PhaseLobby,
		LastActivity: time.Now(),
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	_, err := s.Get(ctx, "ABC234")
	assert.ErrorIs(t, err, store.ErrNotFound)

	room := newRoom("ABC234")
	room.Bet = 500
	require.NoError(t, s.Set(ctx, room))

	got, err := s.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "ABC234", got.ID)
	assert.Equal(t, 500, got.Bet)
	assert.Equal(t, int64(1), got.Version)

	// Snapshots are copies: mutating the read value must not leak back.
	got.Bet = 999
	again, err := s.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, 500, again.Bet)
}

func TestMemoryVersionConflict(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, newRoom("ROOM01")))

	a, err := s.Get(ctx, "ROOM01")
	require.NoError(t, err)
	b, err := s.Get(ctx, "ROOM01")
	require.NoError(t, err)

	a.Bet = 100
	require.NoError(t, s.Set(ctx, a))

	b.Bet = 200
	assert.ErrorIs(t, s.Set(ctx, b), store.ErrVersionConflict)

	got, err := s.Get(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Bet, "losing write must not land")
}

func TestMemoryDeleteAndList(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, newRoom("AAA222")))
	require.NoError(t, s.Set(ctx, newRoom("BBB333")))

	rooms, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	ok, err := s.Exists(ctx, "AAA222")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "AAA222"))
	ok, err = s.Exists(ctx, "AAA222")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySocketAssociation(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.AssociateSocket(ctx, "sock1", "ROOM01", time.Hour))
	roomID, err := s.SocketRoom(ctx, "sock1")
	require.NoError(t, err)
	assert.Equal(t, "ROOM01", roomID)

	require.NoError(t, s.RemoveSocket(ctx, "sock1"))
	_, err = s.SocketRoom(ctx, "sock1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemorySocketTTL(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.AssociateSocket(ctx, "sock1", "ROOM01", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := s.SocketRoom(ctx, "sock1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryTouchActivity(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, newRoom("ROOM01")))

	at := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.TouchActivity(ctx, "ROOM01", at))

	got, err := s.Get(ctx, "ROOM01")
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(at))
}
