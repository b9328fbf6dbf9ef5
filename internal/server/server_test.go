package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/endpoint"
	"github.com/Tyrowin/relaychat/internal/terminal"
	"github.com/Tyrowin/relaychat/internal/transport"
	"github.com/Tyrowin/relaychat/internal/transport/wsock"
)

// recordingPublisher collects payloads and can be made to fail.
type recordingPublisher struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (p *recordingPublisher) Publish(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.payloads...)
}

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewBroadcaster(pub, 2)

	b.Enqueue([]byte("a"))
	b.Enqueue([]byte("b"))
	b.Enqueue([]byte("c"))
	assert.Equal(t, uint64(1), b.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b", "c"}, pub.published())

	cancel()
	assert.NoError(t, <-done)
}

func TestBroadcasterClosedIsSwallowed(t *testing.T) {
	b := NewBroadcaster(&recordingPublisher{err: transport.ErrClosed}, 4)
	b.Enqueue([]byte("late"))
	assert.NoError(t, b.Run(context.Background()))
}

func TestBroadcasterFailureIsFatal(t *testing.T) {
	boom := errors.New("boom")
	b := NewBroadcaster(&recordingPublisher{err: boom}, 4)
	b.Enqueue([]byte("x"))
	assert.ErrorIs(t, b.Run(context.Background()), boom)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.PoolSize = 8
	cfg.FrameInterval = 5 * time.Millisecond
	return cfg
}

func startServer(t *testing.T, name string, device terminal.Device) (*Server, string, string, <-chan error, context.CancelFunc) {
	t.Helper()
	repAddr := "inproc://" + name + "-rep"
	pubAddr := "inproc://" + name + "-pub"

	s, err := Listen(testConfig(), repAddr, pubAddr, device)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return s, repAddr, pubAddr, done, cancel
}

// TestFanOut sends one message and expects it in the server history and on
// every subscription.
func TestFanOut(t *testing.T) {
	s, repAddr, pubAddr, done, cancel := startServer(t, "fanout", nil)
	defer cancel()

	subs := make([]transport.Subscriber, 3)
	for i := range subs {
		sub, err := endpoint.DialSubscribe(pubAddr)
		require.NoError(t, err)
		defer sub.Close()
		subs[i] = sub
	}
	time.Sleep(100 * time.Millisecond)

	req, err := endpoint.DialRequest(repAddr)
	require.NoError(t, err)
	defer req.Close()

	ctx, cancelReq := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelReq()
	reply, err := req.Request(ctx, []byte(hello))
	require.NoError(t, err)
	assert.Equal(t, hello, string(reply))

	front, ok := s.History().Front()
	require.True(t, ok)
	assert.Equal(t, hello, front)

	for i, sub := range subs {
		got, err := sub.Recv()
		require.NoError(t, err, "subscriber %d", i)
		assert.Equal(t, hello, string(got))
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// TestConcurrentRequests drives more requesters than there are contexts.
func TestConcurrentRequests(t *testing.T) {
	s, repAddr, _, done, cancel := startServer(t, "concurrent", nil)
	defer cancel()

	const requesters = 20
	var wg sync.WaitGroup
	for i := 0; i < requesters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := endpoint.DialRequest(repAddr)
			if !assert.NoError(t, err) {
				return
			}
			defer req.Close()

			payload := fmt.Sprintf("2026-10-18 07:30:15\nmessage %d", i)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			reply, err := req.Request(ctx, []byte(payload))
			assert.NoError(t, err)
			assert.Equal(t, payload, string(reply))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.History().Len())

	cancel()
	assert.NoError(t, <-done)
}

func TestRenderAndEscape(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	screen := terminal.NewScreen(sim)
	s, repAddr, _, done, cancel := startServer(t, "render", screen)
	defer cancel()

	req, err := endpoint.DialRequest(repAddr)
	require.NoError(t, err)
	defer req.Close()

	ctx, cancelReq := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelReq()
	_, err = req.Request(ctx, []byte(hello))
	require.NoError(t, err)
	require.Equal(t, 1, s.History().Len())

	require.Eventually(t, func() bool {
		cells, width, _ := sim.GetContents()
		cell := cells[23*width+1]
		return len(cell.Runes) > 0 && cell.Runes[0] == 'h'
	}, 2*time.Second, 10*time.Millisecond, "newest message drawn at rows 22-23")

	sim.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("escape did not stop the server")
	}
}

func TestListenBadAddress(t *testing.T) {
	_, err := Listen(testConfig(), "inproc://bad-rep", "carrier-pigeon://coop", nil)
	assert.Error(t, err)

	_, err = Listen(testConfig(), "carrier-pigeon://coop", "inproc://bad-pub", nil)
	assert.Error(t, err)
}

// TestPlainTextRequestIsRelayed sends a payload without a timestamp line over
// websockets; it is echoed and recorded like any other message.
func TestPlainTextRequestIsRelayed(t *testing.T) {
	rep, err := wsock.ListenReply("ws://127.0.0.1:0/chat", wsock.Options{})
	require.NoError(t, err)
	pub, err := wsock.ListenPublish("ws://127.0.0.1:0/feed", wsock.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(testConfig(), rep, pub, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	req, err := wsock.DialRequest(rep.Addr())
	require.NoError(t, err)
	defer req.Close()

	reqCtx, cancelReq := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelReq()
	reply, err := req.Request(reqCtx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(reply))

	front, ok := s.History().Front()
	require.True(t, ok)
	assert.Equal(t, "hello", front)

	reply, err = req.Request(reqCtx, []byte{0xff, 0xfe})
	require.NoError(t, err)
	assert.Empty(t, reply, "invalid UTF-8 is answered with an empty reply")
	assert.Equal(t, 1, s.History().Len())

	cancel()
	assert.NoError(t, <-done)
}
