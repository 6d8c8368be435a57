package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
	"github.com/tuanpham2xx3/LOTOTET-sub000/store"
)

// ErrNoServer means no online server is available for routing.
var ErrNoServer = errors.New("registry: no online server")

// HeartbeatInterval is how often an instance refreshes its record.
const HeartbeatInterval = 30 * time.Second

// serverKeyTTL outlives the staleness threshold so a record expires from
// the store only after it has long been considered offline.
const serverKeyTTL = 90 * time.Second

// Registry tracks the server pool and answers the two routing questions:
// best server for a new room, and which server owns an existing room.
type Registry interface {
	Heartbeat(ctx context.Context) error
	AddConnection(ctx context.Context, delta int) error
	BestServer(ctx context.Context) (*models.ServerRecord, error)
	RoomServer(ctx context.Context, roomID string) (*models.ServerRecord, error)
}

const (
	serverKeyPrefix = "lototet:server:"
	serversSetKey   = "lototet:servers"
)

// RedisRegistry is the shared registry used by the pool.
type RedisRegistry struct {
	rdb   *redis.Client
	rooms store.RoomStore
	log   *zap.SugaredLogger

	id      string
	addr    string
	version string
	conns   atomic.Int64
}

func NewRedisRegistry(rdb *redis.Client, rooms store.RoomStore, log *zap.SugaredLogger, id, addr, version string) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, rooms: rooms, log: log, id: id, addr: addr, version: version}
}

// Heartbeat writes the full record and refreshes its TTL.
func (r *RedisRegistry) Heartbeat(ctx context.Context) error {
	key := serverKeyPrefix + r.id
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":            r.id,
		"addr":          r.addr,
		"version":       r.version,
		"connections":   r.conns.Load(),
		"lastHeartbeat": time.Now().UnixMilli(),
	})
	pipe.Expire(ctx, key, serverKeyTTL)
	pipe.SAdd(ctx, serversSetKey, r.id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("registry: heartbeat: %w", err)
	}
	return nil
}

// RunHeartbeat registers immediately and then refreshes on a ticker until
// ctx is cancelled.
func (r *RedisRegistry) RunHeartbeat(ctx context.Context) {
	if err := r.Heartbeat(ctx); err != nil {
		r.log.Warnf("initial heartbeat failed: %v", err)
	}
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Heartbeat(ctx); err != nil {
				r.log.Warnf("heartbeat failed: %v", err)
			}
		}
	}
}

// AddConnection moves the local connection count and pushes it so routing
// sees load changes between heartbeats.
func (r *RedisRegistry) AddConnection(ctx context.Context, delta int) error {
	n := r.conns.Add(int64(delta))
	if err := r.rdb.HSet(ctx, serverKeyPrefix+r.id, "connections", n).Err(); err != nil {
		return fmt.Errorf("registry: update connections: %w", err)
	}
	return nil
}

func (r *RedisRegistry) record(ctx context.Context, id string) (*models.ServerRecord, error) {
	fields, err := r.rdb.HGetAll(ctx, serverKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("registry: read server %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	conns, _ := strconv.Atoi(fields["connections"])
	hbMs, _ := strconv.ParseInt(fields["lastHeartbeat"], 10, 64)
	return &models.ServerRecord{
		ID:            fields["id"],
		Addr:          fields["addr"],
		Version:       fields["version"],
		Connections:   conns,
		LastHeartbeat: time.UnixMilli(hbMs),
	}, nil
}

// BestServer returns the online server with the fewest connections.
func (r *RedisRegistry) BestServer(ctx context.Context) (*models.ServerRecord, error) {
	ids, err := r.rdb.SMembers(ctx, serversSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("registry: list servers: %w", err)
	}
	now := time.Now()
	var best *models.ServerRecord
	for _, id := range ids {
		rec, err := r.record(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			// Record expired; drop the stale member.
			r.rdb.SRem(ctx, serversSetKey, id)
			continue
		}
		if !rec.Online(now) {
			continue
		}
		if best == nil || rec.Connections < best.Connections {
			best = rec
		}
	}
	if best == nil {
		return nil, ErrNoServer
	}
	return best, nil
}

// RoomServer resolves the instance that owns a room, via the server id
// recorded on the room snapshot.
func (r *RedisRegistry) RoomServer(ctx context.Context, roomID string) (*models.ServerRecord, error) {
	room, err := r.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rec, err := r.record(ctx, room.ServerID)
	if err != nil {
		return nil, err
	}
	if rec == nil || !rec.Online(time.Now()) {
		return nil, ErrNoServer
	}
	return rec, nil
}

// MemoryRegistry is the single-instance fallback: this server is always
// the answer, as long as the room exists.
type MemoryRegistry struct {
	rooms store.RoomStore
	self  *models.ServerRecord
	conns atomic.Int64
}

func NewMemoryRegistry(rooms store.RoomStore, id, addr, version string) *MemoryRegistry {
	return &MemoryRegistry{
		rooms: rooms,
		self:  &models.ServerRecord{ID: id, Addr: addr, Version: version},
	}
}

func (r *MemoryRegistry) Heartbeat(ctx context.Context) error {
	return nil
}

func (r *MemoryRegistry) AddConnection(ctx context.Context, delta int) error {
	r.conns.Add(int64(delta))
	return nil
}

func (r *MemoryRegistry) snapshot() *models.ServerRecord {
	rec := *r.self
	rec.Connections = int(r.conns.Load())
	rec.LastHeartbeat = time.Now()
	return &rec
}

func (r *MemoryRegistry) BestServer(ctx context.Context) (*models.ServerRecord, error) {
	return r.snapshot(), nil
}

func (r *MemoryRegistry) RoomServer(ctx context.Context, roomID string) (*models.ServerRecord, error) {
	if _, err := r.rooms.Get(ctx, roomID); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}
