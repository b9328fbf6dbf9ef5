// Package message defines the chat payload carried on both channels: a
// second-precision timestamp line followed by the user's text.
package message

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout renders the timestamp line, always in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// ErrMalformed is returned by Parse for a payload that is not a message.
var ErrMalformed = errors.New("message: malformed payload")

// Message is an immutable chat message.
type Message struct {
	Sent time.Time
	Text string
}

// New creates a message sent at t, truncated to the second.
func New(t time.Time, text string) Message {
	return Message{
		Sent: t.UTC().Truncate(time.Second),
		Text: text,
	}
}

// String returns the wire form: timestamp, newline, text.
func (m Message) String() string {
	return m.Sent.UTC().Format(TimeLayout) + "\n" + m.Text
}

// Bytes returns the wire form as a payload.
func (m Message) Bytes() []byte {
	return []byte(m.String())
}

// Parse decodes a payload. It fails with ErrMalformed when the payload is not
// UTF-8, lacks the timestamp line, or the timestamp does not parse.
func Parse(payload []byte) (Message, error) {
	if !utf8.Valid(payload) {
		return Message{}, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	stamp, text, ok := strings.Cut(string(payload), "\n")
	if !ok {
		return Message{}, fmt.Errorf("%w: missing timestamp line", ErrMalformed)
	}
	sent, err := time.ParseInLocation(TimeLayout, stamp, time.UTC)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Message{Sent: sent, Text: text}, nil
}

// Lines splits a rendered message into its display lines.
func Lines(raw string) []string {
	return strings.Split(raw, "\n")
}
