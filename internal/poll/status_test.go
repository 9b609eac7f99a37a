package poll

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/radio/internal/bus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type idleChecker struct{}

func (idleChecker) GetLatestMessage(context.Context, string, bool) bool { return true }

func TestLogStatusChanges(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := bus.New()
	stop := LogStatusChanges(b, zap.New(core))

	c := New(idleChecker{}, func() time.Duration { return time.Hour }, b, nil)
	if !c.Start("bob") {
		t.Fatal("Start() = false")
	}
	if !c.Stop() {
		t.Fatal("Stop() = false")
	}
	stop()

	entries := logs.FilterMessage("auto-check state changed").All()
	if len(entries) != 2 {
		t.Fatalf("logged %d state changes, want 2", len(entries))
	}
	want := [][2]string{{"IDLE", "POLLING"}, {"POLLING", "IDLE"}}
	for i, e := range entries {
		fields := e.ContextMap()
		if fields["from"] != want[i][0] || fields["to"] != want[i][1] {
			t.Errorf("entry %d = %v, want %s -> %s", i, fields, want[i][0], want[i][1])
		}
	}
}

func TestLogStatusChangesIgnoresOtherPayloads(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := bus.New()
	stop := LogStatusChanges(b, zap.New(core))

	b.Emit(bus.KindPollStatusChanged, "not a status change")
	stop()

	if n := logs.Len(); n != 0 {
		t.Errorf("logged %d entries, want 0", n)
	}
}
