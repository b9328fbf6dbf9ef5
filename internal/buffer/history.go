// Package buffer holds the relay's shared mutable state: the bounded message
// history on both sides and the client's line of pending input. Every access
// goes through a turnlock.Lock owned by the buffer.
package buffer

import (
	"golang.org/x/exp/slices"

	"github.com/Tyrowin/relaychat/internal/turnlock"
)

// History is a bounded, most-recent-first list of delivered messages.
// The receiving goroutine writes it and the presentation loop reads it.
type History struct {
	lock     turnlock.Lock
	capacity int
	items    []string
}

// NewHistory creates a history holding at most capacity messages.
// A capacity below one is treated as one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		items:    make([]string, 0, capacity+1),
	}
}

// Capacity returns the maximum number of messages kept.
func (h *History) Capacity() int {
	return h.capacity
}

// PushFront inserts msg as the newest entry and evicts from the back until
// the history fits its capacity.
func (h *History) PushFront(msg string) {
	turn := h.lock.Acquire(turnlock.Writer)
	h.items = slices.Insert(h.items, 0, msg)
	for len(h.items) > h.capacity {
		h.items[len(h.items)-1] = ""
		h.items = h.items[:len(h.items)-1]
	}
	h.lock.Release(turn)
}

// Snapshot returns a copy of the history, newest first.
func (h *History) Snapshot() []string {
	turn := h.lock.Acquire(turnlock.Reader)
	out := slices.Clone(h.items)
	h.lock.Release(turn)
	return out
}

// Front returns the newest message, or false when the history is empty.
func (h *History) Front() (string, bool) {
	turn := h.lock.Acquire(turnlock.Reader)
	defer h.lock.Release(turn)
	if len(h.items) == 0 {
		return "", false
	}
	return h.items[0], true
}

// Len returns the number of messages currently held.
func (h *History) Len() int {
	turn := h.lock.Acquire(turnlock.Reader)
	defer h.lock.Release(turn)
	return len(h.items)
}
