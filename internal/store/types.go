package store

// Record is one journaled history entry.
type Record struct {
	ID          int64
	RecordID    string
	Counterpart string
	Body        string
	Direction   string // sent, received
	Timestamp   int64  // unix millis
}
