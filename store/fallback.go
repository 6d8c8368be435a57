package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

// Fallback wraps the shared store and degrades to the in-process store
// per call when the shared store errors. Multi-instance consistency is
// lost while degraded; acceptable for transient outages and local
// development, per the deployment contract.
type Fallback struct {
	primary RoomStore
	local   *Memory
	log     *zap.SugaredLogger
}

func NewFallback(primary RoomStore, local *Memory, log *zap.SugaredLogger) *Fallback {
	return &Fallback{primary: primary, local: local, log: log}
}

// degraded reports whether err is an infrastructure failure rather than a
// domain outcome like a missing room or a lost write race.
func degraded(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrVersionConflict)
}

func (f *Fallback) warn(op string, err error) {
	f.log.Warnf("shared store unavailable for %s, using local fallback: %v", op, err)
}

func (f *Fallback) Get(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := f.primary.Get(ctx, roomID)
	if !degraded(err) {
		return room, err
	}
	f.warn("get", err)
	return f.local.Get(ctx, roomID)
}

func (f *Fallback) Set(ctx context.Context, room *models.Room) error {
	err := f.primary.Set(ctx, room)
	if !degraded(err) {
		return err
	}
	f.warn("set", err)
	// A snapshot read from the shared store carries that store's version
	// line. Adopt the local line only for rooms the local store has never
	// held, so the first degraded write lands; once the room is local,
	// conflicts surface normally and the caller's retry re-reads through
	// the degraded Get.
	f.local.mu.Lock()
	if _, ok := f.local.rooms[room.ID]; !ok {
		room.Version = f.local.versions[room.ID]
	}
	f.local.mu.Unlock()
	return f.local.Set(ctx, room)
}

func (f *Fallback) Delete(ctx context.Context, roomID string) error {
	err := f.primary.Delete(ctx, roomID)
	if degraded(err) {
		f.warn("delete", err)
		err = nil
	}
	if lerr := f.local.Delete(ctx, roomID); lerr != nil {
		return lerr
	}
	return err
}

func (f *Fallback) Exists(ctx context.Context, roomID string) (bool, error) {
	ok, err := f.primary.Exists(ctx, roomID)
	if !degraded(err) {
		return ok, err
	}
	f.warn("exists", err)
	return f.local.Exists(ctx, roomID)
}

func (f *Fallback) List(ctx context.Context) ([]*models.Room, error) {
	rooms, err := f.primary.List(ctx)
	if !degraded(err) {
		return rooms, err
	}
	f.warn("list", err)
	return f.local.List(ctx)
}

func (f *Fallback) AssociateSocket(ctx context.Context, socketID, roomID string, ttl time.Duration) error {
	err := f.primary.AssociateSocket(ctx, socketID, roomID, ttl)
	if !degraded(err) {
		return err
	}
	f.warn("associateSocket", err)
	return f.local.AssociateSocket(ctx, socketID, roomID, ttl)
}

func (f *Fallback) SocketRoom(ctx context.Context, socketID string) (string, error) {
	roomID, err := f.primary.SocketRoom(ctx, socketID)
	if !degraded(err) {
		return roomID, err
	}
	f.warn("socketRoom", err)
	return f.local.SocketRoom(ctx, socketID)
}

func (f *Fallback) RemoveSocket(ctx context.Context, socketID string) error {
	err := f.primary.RemoveSocket(ctx, socketID)
	if !degraded(err) {
		return err
	}
	f.warn("removeSocket", err)
	return f.local.RemoveSocket(ctx, socketID)
}

func (f *Fallback) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	err := f.primary.TouchActivity(ctx, roomID, at)
	if !degraded(err) {
		return err
	}
	f.warn("touchActivity", err)
	return f.local.TouchActivity(ctx, roomID, at)
}
