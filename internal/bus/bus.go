package bus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Publishers never block: a subscriber whose buffer is full misses the event,
// and the miss is counted and logged.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	next    int
	logger  *zap.Logger
	dropped atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger logs dropped events to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[int]*subscription),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				n := b.dropped.Add(1)
				b.logger.Warn("event dropped, subscriber buffer full",
					zap.String("kind", evt.Kind),
					zap.String("namespace", sub.namespace),
					zap.Uint64("dropped_total", n),
				)
			}
		}
	}
}

// Emit publishes an event of the given kind stamped with the current time.
// Safe to call on a nil receiver, which discards the event.
func (b *Bus) Emit(kind string, payload any) {
	if b == nil {
		return
	}
	b.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
