package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuanpham2xx3/LOTOTET-sub000/models"
)

// Coordinator decides when a turn auto-advances. Every response handler
// schedules a debounced check keyed by room id; rapid responses from many
// players collapse into one check (cancel-and-replace, not a queue). When
// the check finds nobody pending it waits a grace delay, then draws.
type Coordinator struct {
	sessions *Session
	log      *zap.SugaredLogger
	onDraw   func(room *models.Room)

	checkDelay    time.Duration
	markedDelay   time.Duration // grace when at least one player marked
	noNumberDelay time.Duration // longer grace when nobody had the number

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// CoordinatorOption tunes delays, mainly for tests.
type CoordinatorOption func(*Coordinator)

func WithDelays(check, marked, noNumber time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.checkDelay = check
		c.markedDelay = marked
		c.noNumberDelay = noNumber
	}
}

func NewCoordinator(sessions *Session, log *zap.SugaredLogger, onDraw func(*models.Room), opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sessions:      sessions,
		log:           log,
		onDraw:        onDraw,
		checkDelay:    100 * time.Millisecond,
		markedDelay:   1 * time.Second,
		noNumberDelay: 2 * time.Second,
		timers:        make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule arms (or re-arms) the debounced check for a room. An existing
// pending timer is cancelled and replaced, never raced against.
func (c *Coordinator) Schedule(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if t, ok := c.timers[roomID]; ok {
		t.Stop()
	}
	c.timers[roomID] = time.AfterFunc(c.checkDelay, func() {
		c.check(roomID)
	})
}

func (c *Coordinator) check(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := c.sessions.Store().Get(ctx, roomID)
	if err != nil {
		c.log.Debugf("coordinator: room %s gone: %v", roomID, err)
		return
	}
	if room.Phase != models.PhasePlaying || room.Game == nil || room.Game.TurnID == 0 {
		return
	}
	if len(room.Pending()) > 0 {
		// Somebody still has to answer; the next response re-triggers us.
		return
	}

	delay := c.markedDelay
	allNoNumber := len(room.Game.Responses) > 0
	for _, resp := range room.Game.Responses {
		if resp != models.ResponseNoNumber {
			allNoNumber = false
			break
		}
	}
	if allNoNumber {
		delay = c.noNumberDelay
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if t, ok := c.timers[roomID]; ok {
		t.Stop()
	}
	c.timers[roomID] = time.AfterFunc(delay, func() {
		c.autoDraw(roomID)
	})
	c.mu.Unlock()
}

func (c *Coordinator) autoDraw(roomID string) {
	c.mu.Lock()
	delete(c.timers, roomID)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The draw re-checks phase and pending players itself, so a response
	// or claim that slipped in after our check just makes this a no-op.
	room, err := c.sessions.Draw(ctx, roomID, "")
	if err != nil {
		c.log.Debugf("coordinator: auto-draw for room %s skipped: %v", roomID, err)
		return
	}
	c.log.Debugf("coordinator: room %s auto-drew %d (turn %d)", roomID, room.Game.Current, room.Game.TurnID)
	if c.onDraw != nil {
		c.onDraw(room)
	}
}

// Stop cancels every pending timer. Used on shutdown and in tests.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
