package bus

import "time"

// Event kinds published by the client.
const (
	KindMessageSent       = "message.sent"
	KindMessageReceived   = "message.received"
	KindPollStatusChanged = "poll.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
