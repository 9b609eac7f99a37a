// Package history appends sent and received messages to a plain-text log.
package history

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/matheus3301/radio/internal/bus"
	"github.com/matheus3301/radio/internal/settings"
	"go.uber.org/zap"
)

// TimeLayout is the timestamp format of a log line.
const TimeLayout = "2006-01-02 15:04:05"

// Direction tells whether a message was sent or received.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Record is one history entry. Records are never modified once written.
type Record struct {
	Time        time.Time
	Counterpart string
	Body        string
	Direction   Direction
}

// Line formats r as it appears in the history file, without the newline.
func (r Record) Line() string {
	verb := "Received from"
	if r.Direction == Sent {
		verb = "Sent to"
	}
	return fmt.Sprintf("[%s] %s %s: %s", r.Time.Format(TimeLayout), verb, r.Counterpart, r.Body)
}

// Settings supplies the live save_messages flag and file path.
type Settings interface {
	Get() settings.Settings
}

// Log appends records to the configured history file.
type Log struct {
	settings Settings
	bus      *bus.Bus
	logger   *zap.Logger
	now      func() time.Time

	mu sync.Mutex
}

// New creates a history log. b may be nil.
func New(s Settings, b *bus.Bus, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{settings: s, bus: b, logger: logger, now: time.Now}
}

// Append writes one line for the message unless save_messages is off. Write
// failures are logged. After a successful write the record is published as
// message.sent or message.received.
func (l *Log) Append(counterpart, body string, dir Direction) {
	cfg := l.settings.Get()
	if !cfg.SaveMessages {
		return
	}

	rec := Record{Time: l.now(), Counterpart: counterpart, Body: body, Direction: dir}
	if err := l.write(cfg.MessageHistoryFile, rec); err != nil {
		l.logger.Error("error saving message history", zap.String("path", cfg.MessageHistoryFile), zap.Error(err))
		return
	}

	kind := bus.KindMessageReceived
	if dir == Sent {
		kind = bus.KindMessageSent
	}
	l.bus.Emit(kind, rec)
}

func (l *Log) write(path string, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintln(f, rec.Line())
	if cerr := f.Close(); cerr != nil && werr == nil {
		return cerr
	}
	return werr
}
