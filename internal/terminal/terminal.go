// Package terminal is the device boundary of the relay: a character-cell
// screen with non-blocking key input. Screen implements it on tcell.
package terminal

import (
	"fmt"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Key classifies an input event.
type Key int

const (
	KeyNone      Key = iota // not a key the relay reacts to, or a resize
	KeyRune                 // a character, carried in Event.Rune
	KeyEnter                // submit the edit line
	KeyBackspace            // delete the last character
	KeyEscape               // leave the screen
	KeyClose                // terminal closed or interrupted (Ctrl-C, Ctrl-D)
)

// Event is one key press. Rune is set for KeyRune.
type Event struct {
	Key  Key
	Rune rune
}

// Printable reports whether the event carries a character the edit line
// accepts.
func (e Event) Printable() bool {
	return e.Key == KeyRune && (unicode.IsPrint(e.Rune) && !unicode.IsControl(e.Rune))
}

// Device is what the presentation loops draw on and poll.
type Device interface {
	Open() error
	SetTitle(title string)
	Clear()
	Print(x, y int, text string)
	Put(x, y int, r rune)
	Refresh()
	Close()
	HasInput() bool
	ReadKey() Event
}

// Screen is a Device backed by a tcell screen. The title is drawn on row 0.
type Screen struct {
	screen tcell.Screen
	style  tcell.Style
	title  string
	open   bool
}

var _ Device = (*Screen)(nil)

// NewScreen wraps s; a nil s uses the process terminal.
func NewScreen(s tcell.Screen) *Screen {
	return &Screen{screen: s, style: tcell.StyleDefault}
}

// Open initializes the terminal.
func (s *Screen) Open() error {
	if s.open {
		return nil
	}
	if s.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		s.screen = screen
	}
	if err := s.screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	s.screen.SetStyle(s.style)
	s.open = true
	return nil
}

// SetTitle sets the text drawn on the top row at every Clear.
func (s *Screen) SetTitle(title string) {
	s.title = title
}

// Clear blanks the screen and redraws the title.
func (s *Screen) Clear() {
	s.screen.Clear()
	if s.title != "" {
		s.Print(0, 0, s.title)
	}
}

// Print draws text starting at column x of row y. Newlines continue on the
// next row at column x.
func (s *Screen) Print(x, y int, text string) {
	col := x
	for _, r := range text {
		if r == '\n' {
			y++
			col = x
			continue
		}
		s.screen.SetContent(col, y, r, nil, s.style)
		col += max(runewidth.RuneWidth(r), 1)
	}
}

// Put draws a single rune.
func (s *Screen) Put(x, y int, r rune) {
	s.screen.SetContent(x, y, r, nil, s.style)
}

// Refresh flushes pending drawing to the terminal.
func (s *Screen) Refresh() {
	s.screen.Show()
}

// Close restores the terminal. It is safe to call more than once.
func (s *Screen) Close() {
	if !s.open {
		return
	}
	s.open = false
	s.screen.Fini()
}

// HasInput reports whether ReadKey would return without blocking.
func (s *Screen) HasInput() bool {
	return s.screen.HasPendingEvent()
}

// ReadKey returns the next event, translated. Events other than keys
// come back as KeyNone.
func (s *Screen) ReadKey() Event {
	switch ev := s.screen.PollEvent().(type) {
	case nil:
		return Event{Key: KeyClose}
	case *tcell.EventResize:
		s.screen.Sync()
		return Event{}
	case *tcell.EventKey:
		return translate(ev)
	default:
		return Event{}
	}
}

func translate(ev *tcell.EventKey) Event {
	switch ev.Key() {
	case tcell.KeyRune:
		return Event{Key: KeyRune, Rune: ev.Rune()}
	case tcell.KeyEnter:
		return Event{Key: KeyEnter}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return Event{Key: KeyBackspace}
	case tcell.KeyEscape:
		return Event{Key: KeyEscape}
	case tcell.KeyCtrlC, tcell.KeyCtrlD:
		return Event{Key: KeyClose}
	default:
		return Event{}
	}
}
