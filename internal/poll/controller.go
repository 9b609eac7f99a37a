// Package poll runs the background auto-check loop.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheus3301/radio/internal/bus"
	"go.uber.org/zap"
)

// State is the controller's lifecycle state.
type State string

const (
	Idle    State = "IDLE"
	Polling State = "POLLING"
)

// StatusChange is the payload of poll.status_changed events.
type StatusChange struct {
	From State
	To   State
}

// Checker fetches the latest message for a user.
type Checker interface {
	GetLatestMessage(ctx context.Context, username string, notifyIfUnchanged bool) bool
}

// Controller owns at most one polling goroutine. Start and Stop are safe to
// call from any goroutine; the enabled flag is true iff a loop is running.
type Controller struct {
	checker  Checker
	interval func() time.Duration
	bus      *bus.Bus
	logger   *zap.Logger

	mu       sync.Mutex
	enabled  atomic.Bool
	username string
	cancel   context.CancelFunc
	done     chan struct{}
	spawned  atomic.Int64
}

// New creates an idle controller. interval is consulted before every wait so
// settings changes apply to a running loop.
func New(checker Checker, interval func() time.Duration, b *bus.Bus, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		checker:  checker,
		interval: interval,
		bus:      b,
		logger:   logger,
	}
}

// Start begins polling for username. It returns false, leaving the running
// loop untouched, when the controller is already polling.
func (c *Controller) Start(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.username, c.cancel, c.done = username, cancel, done
	c.enabled.Store(true)
	c.spawned.Add(1)
	go c.loop(ctx, username, done)

	c.logger.Info("auto-check started", zap.String("username", username))
	c.bus.Emit(bus.KindPollStatusChanged, StatusChange{From: Idle, To: Polling})
	return true
}

// Stop ends polling and waits for the loop goroutine to exit. It returns
// false when the controller was already idle.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled.Load() {
		return false
	}

	c.enabled.Store(false)
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil

	c.logger.Info("auto-check stopped", zap.String("username", c.username))
	c.bus.Emit(bus.KindPollStatusChanged, StatusChange{From: Polling, To: Idle})
	return true
}

// Enabled reports whether a polling loop is running.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// State returns Polling while a loop is running, Idle otherwise.
func (c *Controller) State() State {
	if c.enabled.Load() {
		return Polling
	}
	return Idle
}

// Spawned returns how many loop goroutines have been started in total.
func (c *Controller) Spawned() int {
	return int(c.spawned.Load())
}

func (c *Controller) loop(ctx context.Context, username string, done chan struct{}) {
	defer close(done)
	for c.enabled.Load() {
		c.checkOnce(ctx, username)

		timer := time.NewTimer(c.wait())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// checkOnce runs one poll. A panic in the checker is logged and the loop
// carries on.
func (c *Controller) checkOnce(ctx context.Context, username string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("error in auto-check", zap.Any("panic", r))
		}
	}()
	if !c.checker.GetLatestMessage(ctx, username, false) && ctx.Err() == nil {
		c.logger.Debug("auto-check poll failed", zap.String("username", username))
	}
}

func (c *Controller) wait() time.Duration {
	if d := c.interval(); d > 0 {
		return d
	}
	return time.Second
}
