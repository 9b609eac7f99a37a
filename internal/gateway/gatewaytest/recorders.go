package gatewaytest

import (
	"context"
	"slices"
	"sync"

	"github.com/matheus3301/radio/internal/history"
)

// Speaker records Speak calls instead of producing audio.
type Speaker struct {
	mu    sync.Mutex
	texts []string
	rates []int
}

func (s *Speaker) Speak(_ context.Context, text string, rate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.rates = append(s.rates, rate)
}

// Texts returns what was spoken, in order.
func (s *Speaker) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.texts)
}

// Rates returns the rate passed with each call.
func (s *Speaker) Rates() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rates)
}

// Entry is one recorded history append.
type Entry struct {
	Counterpart string
	Body        string
	Direction   history.Direction
}

// History records Append calls in memory.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

func (h *History) Append(counterpart, body string, dir history.Direction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Entry{Counterpart: counterpart, Body: body, Direction: dir})
}

// Entries returns every recorded append, in order.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// Count returns how many appends had direction dir.
func (h *History) Count(dir history.Direction) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.entries {
		if e.Direction == dir {
			n++
		}
	}
	return n
}
