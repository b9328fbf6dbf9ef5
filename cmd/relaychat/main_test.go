package main

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/terminal"
)

func headless(t *testing.T) {
	t.Helper()
	old := newDevice
	newDevice = func() terminal.Device { return nil }
	t.Cleanup(func() {
		newDevice = old
		log.SetOutput(os.Stderr)
	})
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "usage: relaychat"},
		{"too few", []string{"server", "inproc://a"}, "usage: relaychat"},
		{"too many", []string{"server", "inproc://a", "inproc://b", "extra"}, "usage: relaychat"},
		{"bad mode", []string{"proxy", "inproc://a", "inproc://b"}, `unknown mode "proxy"`},
		{"bad endpoint", []string{"client", "inproc://a", "smtp://b"}, "unsupported scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stderr)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestRunHeadlessServerStopsOnCancel(t *testing.T) {
	headless(t)
	t.Setenv("RELAY_POOL_SIZE", "4")
	logPath := filepath.Join(t.TempDir(), "relay.log")
	t.Setenv("RELAY_LOG_FILE", logPath)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	var stderr bytes.Buffer
	go func() {
		done <- run(ctx, []string{"server", "inproc://main-rep", "inproc://main-pub"}, &stderr)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case code := <-done:
		assert.Equal(t, exitOK, code, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Relay server running with 4 reply contexts")
}

func TestRunListenFailure(t *testing.T) {
	headless(t)
	t.Setenv("RELAY_LOG_FILE", "")

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"server", "ws://127.0.0.1:99999/", "inproc://fail-pub"}, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "relaychat server:")
}

func TestRunBadLogFile(t *testing.T) {
	headless(t)
	t.Setenv("RELAY_LOG_FILE", filepath.Join(t.TempDir(), "missing", "relay.log"))

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"client", "inproc://a", "inproc://b"}, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "open log file")
}
