// Package terminal serializes console output shared by the menu and the poll
// goroutine.
package terminal

import (
	"io"
	"sync"
)

// Writer is an io.Writer whose Write calls do not interleave.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w. Wrapping a *Writer returns it unchanged.
func NewWriter(w io.Writer) *Writer {
	if tw, ok := w.(*Writer); ok {
		return tw
	}
	return &Writer{w: w}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
