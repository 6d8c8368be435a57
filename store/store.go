// Package store holds room snapshots and socket associations in the shared
// key-value store, with an in-process implementation for single-instance
// fallback. Every write replaces the whole room snapshot; concurrent
// writers are serialized by an optimistic version check rather than locks.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

var (
	// ErrNotFound is returned for unknown rooms and sockets.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when a Set loses a read-modify-write
	// race; the caller should re-read and retry.
	ErrVersionConflict = errors.New("store: version conflict")
)

// RoomStore is the room snapshot and socket-association store.
type RoomStore interface {
	Get(ctx context.Context, roomID string) (*models.Room, error)
	// Set writes the full snapshot if room.Version still matches the
	// stored version, then bumps room.Version.
	Set(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, roomID string) error
	Exists(ctx context.Context, roomID string) (bool, error)
	List(ctx context.Context) ([]*models.Room, error)

	AssociateSocket(ctx context.Context, socketID, roomID string, ttl time.Duration) error
	SocketRoom(ctx context.Context, socketID string) (string, error)
	RemoveSocket(ctx context.Context, socketID string) error

	TouchActivity(ctx context.Context, roomID string, at time.Time) error
}

// mutate runs one read-modify-write cycle against s, retrying a bounded
// number of times on version conflicts.
func mutate(ctx context.Context, s RoomStore, roomID string, fn func(*models.Room)) error {
	for attempt := 0; attempt < 3; attempt++ {
		room, err := s.Get(ctx, roomID)
		if err != nil {
			return err
		}
		fn(room)
		err = s.Set(ctx, room)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return ErrVersionConflict
}
