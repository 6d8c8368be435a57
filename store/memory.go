package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

type socketEntry struct {
	roomID    string
	expiresAt time.Time
}

// Memory is the in-process store used when the shared store is
// unreachable. Correct only within a single server instance.
type Memory struct {
	mu       sync.RWMutex
	rooms    map[string][]byte
	versions map[string]int64
	sockets  map[string]socketEntry
}

func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string][]byte),
		versions: make(map[string]int64),
		sockets:  make(map[string]socketEntry),
	}
}

func (s *Memory) Get(ctx context.Context, roomID string) (*models.Room, error) {
	s.mu.RLock()
	data, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("store: decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *Memory) Set(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.versions[room.ID]
	if room.Version != cur {
		return ErrVersionConflict
	}

	expected := room.Version
	room.Version = expected + 1
	data, err := json.Marshal(room)
	if err != nil {
		room.Version = expected
		return fmt.Errorf("store: encode room %s: %w", room.ID, err)
	}
	s.rooms[room.ID] = data
	s.versions[room.ID] = room.Version
	return nil
}

func (s *Memory) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	delete(s.versions, roomID)
	return nil
}

func (s *Memory) Exists(ctx context.Context, roomID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok, nil
}

func (s *Memory) List(ctx context.Context) ([]*models.Room, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *Memory) AssociateSocket(ctx context.Context, socketID, roomID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[socketID] = socketEntry{roomID: roomID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *Memory) SocketRoom(ctx context.Context, socketID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.sockets[socketID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sockets, socketID)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.roomID, nil
}

func (s *Memory) RemoveSocket(ctx context.Context, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, socketID)
	return nil
}

func (s *Memory) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	return mutate(ctx, s, roomID, func(r *models.Room) {
		r.LastActivity = at
	})
}
