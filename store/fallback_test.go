package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

// downStore simulates an unreachable shared store.
type downStore struct{}

var errDown = errors.New("connection refused")

func (downStore) Get(context.Context, string) (*models.Room, error) { return nil, errDown }
func (downStore) Set(context.Context, *models.Room) error           { return errDown }
func (downStore) Delete(context.Context, string) error              { return errDown }
func (downStore) Exists(context.Context, string) (bool, error)      { return false, errDown }
func (downStore) List(context.Context) ([]*models.Room, error)      { return nil, errDown }
func (downStore) AssociateSocket(context.Context, string, string, time.Duration) error {
	return errDown
}
func (downStore) SocketRoom(context.Context, string) (string, error) { return "", errDown }
func (downStore) RemoveSocket(context.Context, string) error         { return errDown }
func (downStore) TouchActivity(context.Context, string, time.Time) error {
	return errDown
}

func TestFallbackDegradesToLocal(t *testing.T) {
	local := store.NewMemory()
	f := store.NewFallback(downStore{}, local, zap.NewNop().Sugar())
	ctx := context.Background()

	room := newRoom("ROOM01")
	require.NoError(t, f.Set(ctx, room))

	got, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, "ROOM01", got.ID)

	ok, err := f.Exists(ctx, "ROOM01")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.AssociateSocket(ctx, "sock1", "ROOM01", time.Hour))
	roomID, err := f.SocketRoom(ctx, "sock1")
	require.NoError(t, err)
	assert.Equal(t, "ROOM01", roomID)

	rooms, err := f.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	require.NoError(t, f.Delete(ctx, "ROOM01"))
	_, err = f.Get(ctx, "ROOM01")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFallbackDegradedVersionConflict(t *testing.T) {
	// While degraded, the local store must still reject a stale write:
	// two read-modify-write cycles over the same snapshot may not both
	// land.
	f := store.NewFallback(downStore{}, store.NewMemory(), zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, f.Set(ctx, newRoom("ROOM01")))

	first, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)
	second, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)

	first.Bet = 100
	require.NoError(t, f.Set(ctx, first))

	second.Bet = 200
	assert.ErrorIs(t, f.Set(ctx, second), store.ErrVersionConflict)

	got, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Bet, "losing writer must not overwrite")
}

func TestFallbackPassesDomainErrors(t *testing.T) {
	// A healthy primary's domain outcomes must flow through untouched.
	primary := store.NewMemory()
	f := store.NewFallback(primary, store.NewMemory(), zap.NewNop().Sugar())
	ctx := context.Background()

	_, err := f.Get(ctx, "NOPE99")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.Set(ctx, newRoom("ROOM01")))
	stale, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)
	fresh, err := f.Get(ctx, "ROOM01")
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, fresh))
	assert.ErrorIs(t, f.Set(ctx, stale), store.ErrVersionConflict)
}
