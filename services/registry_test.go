package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/services"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

func TestMemoryRegistryBestServer(t *testing.T) {
	mem := store.NewMemory()
	r := services.NewMemoryRegistry(mem, "srv-1", "ws://localhost:4000", "1.0.0")
	ctx := context.Background()

	require.NoError(t, r.AddConnection(ctx, 1))
	require.NoError(t, r.AddConnection(ctx, 1))
	require.NoError(t, r.AddConnection(ctx, -1))

	rec, err := r.BestServer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", rec.ID)
	assert.Equal(t, "ws://localhost:4000", rec.Addr)
	assert.Equal(t, 1, rec.Connections)
	assert.True(t, rec.Online(time.Now()))
}

func TestMemoryRegistryRoomServer(t *testing.T) {
	mem := store.NewMemory()
	r := services.NewMemoryRegistry(mem, "srv-1", "ws://localhost:4000", "1.0.0")
	ctx := context.Background()

	s := services.NewSession(mem, zap.NewNop().Sugar(), "srv-1")
	room, err := s.CreateRoom(ctx, "host-sock", "an", 0)
	require.NoError(t, err)

	rec, err := r.RoomServer(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", rec.ID)

	_, err = r.RoomServer(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServerRecordOnline(t *testing.T) {
	now := time.Now()
	fresh := models.ServerRecord{LastHeartbeat: now.Add(-10 * time.Second)}
	stale := models.ServerRecord{LastHeartbeat: now.Add(-2 * time.Minute)}

	assert.True(t, fresh.Online(now))
	assert.False(t, stale.Online(now))
}
