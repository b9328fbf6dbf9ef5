package buffer

import (
	"strings"
	"unicode/utf8"

	"github.com/Tyrowin/relaychat/internal/turnlock"
)

// DefaultEditCapacity is the number of runes that fit after the "> " prompt
// on a 78 column input row.
const DefaultEditCapacity = 76

// Edit is the client's single line of pending input.
type Edit struct {
	lock     turnlock.Lock
	capacity int
	text     strings.Builder
	runes    int
}

// NewEdit creates an empty edit line limited to capacity runes.
func NewEdit(capacity int) *Edit {
	if capacity < 1 {
		capacity = DefaultEditCapacity
	}
	return &Edit{capacity: capacity}
}

// Capacity returns the rune limit of the line.
func (e *Edit) Capacity() int {
	return e.capacity
}

// Append adds r to the end of the line. It reports false, leaving the line
// untouched, when the line is already full.
func (e *Edit) Append(r rune) bool {
	turn := e.lock.Acquire(turnlock.Writer)
	defer e.lock.Release(turn)

	if e.runes >= e.capacity {
		return false
	}
	e.text.WriteRune(r)
	e.runes++
	return true
}

// Backspace removes the last rune. It reports false on an empty line.
func (e *Edit) Backspace() bool {
	turn := e.lock.Acquire(turnlock.Writer)
	defer e.lock.Release(turn)

	if e.runes == 0 {
		return false
	}
	s := e.text.String()
	_, size := utf8.DecodeLastRuneInString(s)
	e.text.Reset()
	e.text.WriteString(s[:len(s)-size])
	e.runes--
	return true
}

// String returns the current line.
func (e *Edit) String() string {
	turn := e.lock.Acquire(turnlock.Reader)
	defer e.lock.Release(turn)
	return e.text.String()
}

// Len returns the number of runes on the line.
func (e *Edit) Len() int {
	turn := e.lock.Acquire(turnlock.Reader)
	defer e.lock.Release(turn)
	return e.runes
}

// Clear empties the line.
func (e *Edit) Clear() {
	turn := e.lock.Acquire(turnlock.Writer)
	e.text.Reset()
	e.runes = 0
	e.lock.Release(turn)
}
