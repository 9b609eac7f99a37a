package poll

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/radio/internal/bus"
	"github.com/matheus3301/radio/internal/gateway"
	"github.com/matheus3301/radio/internal/gateway/gatewaytest"
	"github.com/matheus3301/radio/internal/history"
	"github.com/matheus3301/radio/internal/settings"
	"go.uber.org/zap/zaptest"
)

// countingChecker counts polls and tracks how many run at once.
type countingChecker struct {
	calls     atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64
	notified  atomic.Int64
	panicOn   int64
	delay     time.Duration
}

func (c *countingChecker) GetLatestMessage(ctx context.Context, _ string, notify bool) bool {
	n := c.calls.Add(1)
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		m := c.maxFlight.Load()
		if cur <= m || c.maxFlight.CompareAndSwap(m, cur) {
			break
		}
	}
	if notify {
		c.notified.Add(1)
	}
	if n == c.panicOn {
		panic("malformed response")
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func every(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	c := New(&countingChecker{}, every(time.Second), nil, zaptest.NewLogger(t))

	if c.Stop() {
		t.Error("Stop() on idle controller = true, want false")
	}
	if c.State() != Idle || c.Enabled() {
		t.Errorf("state = %s, want IDLE", c.State())
	}
}

func TestStartWhilePollingDoesNotSpawn(t *testing.T) {
	checker := &countingChecker{}
	c := New(checker, every(time.Hour), nil, zaptest.NewLogger(t))

	if !c.Start("bob") {
		t.Fatal("first Start() = false")
	}
	defer c.Stop()
	if c.Start("bob") {
		t.Error("second Start() = true, want false")
	}
	if c.Start("alice") {
		t.Error("Start() for another user while polling = true, want false")
	}
	if c.Spawned() != 1 {
		t.Errorf("Spawned() = %d, want 1", c.Spawned())
	}
	if c.State() != Polling {
		t.Errorf("state = %s, want POLLING", c.State())
	}
}

func TestStopImmediatelyAfterStartJoins(t *testing.T) {
	checker := &countingChecker{}
	c := New(checker, every(time.Hour), nil, zaptest.NewLogger(t))

	c.Start("bob")
	start := time.Now()
	if !c.Stop() {
		t.Fatal("Stop() = false")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop() took %v, want it to interrupt the wait", elapsed)
	}
	if c.State() != Idle {
		t.Errorf("state = %s, want IDLE", c.State())
	}

	calls := checker.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if checker.calls.Load() != calls {
		t.Error("loop still polling after Stop() returned")
	}
	if checker.inFlight.Load() != 0 {
		t.Error("poll in flight after Stop() returned")
	}
}

func TestStopCancelsInFlightPoll(t *testing.T) {
	checker := &countingChecker{delay: time.Hour}
	c := New(checker, every(time.Hour), nil, zaptest.NewLogger(t))

	c.Start("bob")
	waitFor(t, time.Second, func() bool { return checker.inFlight.Load() == 1 })

	c.Stop()
	if checker.inFlight.Load() != 0 {
		t.Error("poll still in flight after Stop()")
	}
}

func TestRoutinePollsDoNotNotify(t *testing.T) {
	checker := &countingChecker{}
	c := New(checker, every(10*time.Millisecond), nil, zaptest.NewLogger(t))

	c.Start("bob")
	waitFor(t, 2*time.Second, func() bool { return checker.calls.Load() >= 3 })
	c.Stop()

	if checker.notified.Load() != 0 {
		t.Errorf("%d polls asked for the unchanged notice", checker.notified.Load())
	}
}

func TestLoopSurvivesPanic(t *testing.T) {
	checker := &countingChecker{panicOn: 1}
	c := New(checker, every(10*time.Millisecond), nil, zaptest.NewLogger(t))

	c.Start("bob")
	waitFor(t, 2*time.Second, func() bool { return checker.calls.Load() >= 3 })
	if !c.Enabled() {
		t.Error("controller disabled after a panicking poll")
	}
	c.Stop()
}

func TestRestartAfterStop(t *testing.T) {
	c := New(&countingChecker{}, every(time.Hour), nil, zaptest.NewLogger(t))

	for range 3 {
		if !c.Start("bob") {
			t.Fatal("Start() = false after Stop()")
		}
		if !c.Stop() {
			t.Fatal("Stop() = false while polling")
		}
	}
	if c.Spawned() != 3 {
		t.Errorf("Spawned() = %d, want 3", c.Spawned())
	}
}

func TestConcurrentStartStopKeepsOneLoop(t *testing.T) {
	checker := &countingChecker{delay: time.Millisecond}
	c := New(checker, every(time.Millisecond), nil, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if i%2 == 0 {
					c.Start("bob")
				} else {
					c.Stop()
				}
			}
		}()
	}
	wg.Wait()
	c.Stop()

	if m := checker.maxFlight.Load(); m > 1 {
		t.Errorf("max concurrent polls = %d, want <= 1", m)
	}
	if c.State() != Idle {
		t.Errorf("state = %s, want IDLE", c.State())
	}
}

func TestStatusEvents(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("poll.", 10)
	defer unsub()

	c := New(&countingChecker{}, every(time.Hour), b, zaptest.NewLogger(t))
	c.Start("bob")
	c.Stop()

	for _, want := range []StatusChange{{Idle, Polling}, {Polling, Idle}} {
		select {
		case evt := <-ch:
			if got, _ := evt.Payload.(StatusChange); got != want {
				t.Errorf("change = %+v, want %+v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for poll.status_changed")
		}
	}
}

// TestRepeatedMessageSpokenOnce polls a server that keeps returning the same
// message for three seconds at a one-second interval.
func TestRepeatedMessageSpokenOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for three seconds")
	}

	srv := gatewaytest.NewServer(t)
	srv.SetMessage("bob", "hello")

	dir := t.TempDir()
	store := settings.Load(filepath.Join(dir, "settings.json"), nil)
	if err := store.Set("message_history_file", filepath.Join(dir, "history.txt")); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("auto_check_interval", "1"); err != nil {
		t.Fatal(err)
	}

	logger := zaptest.NewLogger(t)
	speaker := &gatewaytest.Speaker{}
	gw := gateway.New(
		gateway.NewAPI(srv.URL, time.Second),
		history.New(store, nil, logger),
		speaker,
		store,
		&bytes.Buffer{},
		logger,
	)
	c := New(gw, func() time.Duration { return store.Get().Interval() }, nil, logger)

	c.Start("bob")
	time.Sleep(3 * time.Second)
	c.Stop()

	if srv.Polls() < 3 {
		t.Errorf("server polled %d times, want >= 3", srv.Polls())
	}
	if got := speaker.Texts(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("spoken = %v, want [hello]", got)
	}
	data, err := os.ReadFile(filepath.Join(dir, "history.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "Received from bob: hello"); n != 1 {
		t.Errorf("history has %d received lines, want 1:\n%s", n, data)
	}
}
