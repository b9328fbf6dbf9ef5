package message

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTruncatesToSecond(t *testing.T) {
	at := time.Date(2026, 10, 18, 9, 30, 15, 987654321, time.FixedZone("X", 2*3600))
	m := New(at, "hello")

	assert.Equal(t, "2026-10-18 07:30:15\nhello", m.String())
	assert.Equal(t, []byte(m.String()), m.Bytes())
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte("2026-10-18 07:30:15\nhello\nworld"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 7, 30, 15, 0, time.UTC), m.Sent)
	assert.Equal(t, "hello\nworld", m.Text)

	m, err = Parse([]byte("2026-10-18 07:30:15\n"))
	require.NoError(t, err)
	assert.Equal(t, "", m.Text)
}

func TestParseMalformed(t *testing.T) {
	for name, payload := range map[string][]byte{
		"empty":        {},
		"no newline":   []byte("hello"),
		"bad stamp":    []byte("yesterday\nhello"),
		"invalid utf8": {0xff, 0xfe, '\n'},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(payload)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"2026-10-18 07:30:15", "hi"}, Lines("2026-10-18 07:30:15\nhi"))
}
