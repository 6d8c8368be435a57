package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

const (
	roomKeyPrefix    = "lototet:room:"
	roomVerKeyPrefix = "lototet:roomver:"
	roomsSetKey      = "lototet:rooms"
	socketKeyPrefix  = "lototet:socket:"
)

// setScript writes the snapshot only when the stored version still matches
// what the caller read. Lua keeps the compare and the write atomic.
var setScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[2]) or '0')
if tonumber(ARGV[2]) ~= cur then
  return -1
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], cur + 1)
redis.call('SADD', KEYS[3], ARGV[3])
return cur + 1
`)

// Redis is the shared-store implementation used in production; every
// instance in the pool sees the same rooms.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (s *Redis) Get(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := s.rdb.Get(ctx, roomKeyPrefix+roomID).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room %s: %w", roomID, err)
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("store: decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *Redis) Set(ctx context.Context, room *models.Room) error {
	expected := room.Version
	room.Version = expected + 1
	data, err := json.Marshal(room)
	if err != nil {
		room.Version = expected
		return fmt.Errorf("store: encode room %s: %w", room.ID, err)
	}

	keys := []string{roomKeyPrefix + room.ID, roomVerKeyPrefix + room.ID, roomsSetKey}
	res, err := setScript.Run(ctx, s.rdb, keys, data, expected, room.ID).Int64()
	if err != nil {
		room.Version = expected
		return fmt.Errorf("store: set room %s: %w", room.ID, err)
	}
	if res == -1 {
		room.Version = expected
		return ErrVersionConflict
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, roomID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, roomKeyPrefix+roomID, roomVerKeyPrefix+roomID)
	pipe.SRem(ctx, roomsSetKey, roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: delete room %s: %w", roomID, err)
	}
	return nil
}

func (s *Redis) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, roomKeyPrefix+roomID).Result()
	if err != nil {
		return false, fmt.Errorf("store: exists room %s: %w", roomID, err)
	}
	return n > 0, nil
}

func (s *Redis) List(ctx context.Context) ([]*models.Room, error) {
	ids, err := s.rdb.SMembers(ctx, roomsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	rooms := make([]*models.Room, 0, len(ids))
	for _, id := range ids {
		room, err := s.Get(ctx, id)
		if err == ErrNotFound {
			// Expired or deleted out-of-band; drop the stale member.
			s.rdb.SRem(ctx, roomsSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (s *Redis) AssociateSocket(ctx context.Context, socketID, roomID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, socketKeyPrefix+socketID, roomID, ttl).Err(); err != nil {
		return fmt.Errorf("store: associate socket %s: %w", socketID, err)
	}
	return nil
}

func (s *Redis) SocketRoom(ctx context.Context, socketID string) (string, error) {
	roomID, err := s.rdb.Get(ctx, socketKeyPrefix+socketID).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: socket room %s: %w", socketID, err)
	}
	return roomID, nil
}

func (s *Redis) RemoveSocket(ctx context.Context, socketID string) error {
	if err := s.rdb.Del(ctx, socketKeyPrefix+socketID).Err(); err != nil {
		return fmt.Errorf("store: remove socket %s: %w", socketID, err)
	}
	return nil
}

func (s *Redis) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	return mutate(ctx, s, roomID, func(r *models.Room) {
		r.LastActivity = at
	})
}
