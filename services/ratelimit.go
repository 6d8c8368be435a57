package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limit is a sliding-window admission policy for one event.
type Limit struct {
	Max    int64
	Window time.Duration
}

// DefaultPolicy maps event names to their limits. Events without an entry
// are not limited.
var DefaultPolicy = map[string]Limit{
	EventCreateRoom: {Max: 10, Window: time.Minute},
	EventJoinRoom:   {Max: 10, Window: time.Minute},
	EventChat:       {Max: 10, Window: 10 * time.Second},
	EventClaimBingo: {Max: 3, Window: 10 * time.Second},
}

// Limiter admits or rejects one request per (client, event). A rejection
// is an explicit outcome, never a dropped request.
type Limiter interface {
	Allow(ctx context.Context, clientID, event string) (bool, error)
}

// allowScript prunes the window, counts, and records atomically.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, tonumber(ARGV[1]) - tonumber(ARGV[2]))
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// RedisLimiter shares windows across the whole server pool, so a client
// cannot evade limits by landing on another instance.
type RedisLimiter struct {
	rdb    *redis.Client
	policy map[string]Limit
}

func NewRedisLimiter(rdb *redis.Client, policy map[string]Limit) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, policy: policy}
}

func (l *RedisLimiter) Allow(ctx context.Context, clientID, event string) (bool, error) {
	limit, ok := l.policy[event]
	if !ok {
		return true, nil
	}
	key := fmt.Sprintf("lototet:rl:%s:%s", clientID, event)
	nowMs := time.Now().UnixMilli()
	res, err := allowScript.Run(ctx, l.rdb, []string{key},
		nowMs, limit.Window.Milliseconds(), limit.Max, uuid.NewString()).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	return res == 1, nil
}

// MemoryLimiter is the per-process fallback window. Instantiated per
// server (no package-level state) so tests stay isolated.
type MemoryLimiter struct {
	policy map[string]Limit

	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryLimiter(policy map[string]Limit) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		windows: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, clientID, event string) (bool, error) {
	limit, ok := l.policy[event]
	if !ok {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := clientID + "|" + event
	now := time.Now()
	windowStart := now.Add(-limit.Window)

	requests := l.windows[key]
	valid := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if int64(len(valid)) >= limit.Max {
		l.windows[key] = valid
		return false, nil
	}
	l.windows[key] = append(valid, now)
	return true, nil
}

// FallbackLimiter degrades to the per-process window when the shared
// store errors, trading cross-instance accuracy for availability.
type FallbackLimiter struct {
	primary Limiter
	local   *MemoryLimiter
	log     *zap.SugaredLogger
}

func NewFallbackLimiter(primary Limiter, local *MemoryLimiter, log *zap.SugaredLogger) *FallbackLimiter {
	return &FallbackLimiter{primary: primary, local: local, log: log}
}

func (l *FallbackLimiter) Allow(ctx context.Context, clientID, event string) (bool, error) {
	ok, err := l.primary.Allow(ctx, clientID, event)
	if err == nil {
		return ok, nil
	}
	l.log.Warnf("shared rate limiter unavailable, using local window: %v", err)
	return l.local.Allow(ctx, clientID, event)
}
