// Package journal indexes history records into the profile's SQLite journal
// so they can be listed and searched later.
package journal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/radio/internal/bus"
	"github.com/matheus3301/radio/internal/history"
	"github.com/matheus3301/radio/internal/store"
	"go.uber.org/zap"
)

// Recorder subscribes to "message." events on the bus and stores each
// history.Record it sees.
type Recorder struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a new recorder.
func NewRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to message events. Events published before Start are not
// recorded.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe("message.", 256)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				r.drain(ch)
				return
			}
		}
	}()
}

// Stop stops the recorder after storing any events already queued.
func (r *Recorder) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
}

func (r *Recorder) drain(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			r.handleEvent(evt)
		default:
			return
		}
	}
}

func (r *Recorder) handleEvent(evt bus.Event) {
	rec, ok := evt.Payload.(history.Record)
	if !ok {
		return
	}
	if err := r.Ingest(rec); err != nil {
		r.logger.Error("failed to journal message", zap.Error(err), zap.String("kind", evt.Kind))
	}
}

// Ingest stores one history record under a fresh id.
func (r *Recorder) Ingest(rec history.Record) error {
	err := r.db.InsertRecord(&store.Record{
		RecordID:    uuid.NewString(),
		Counterpart: rec.Counterpart,
		Body:        rec.Body,
		Direction:   string(rec.Direction),
		Timestamp:   rec.Time.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
