package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/transport"
)

func TestValidate(t *testing.T) {
	for _, addr := range []string{
		"ws://127.0.0.1:5555/",
		"tcp://127.0.0.1:5555",
		"ipc:///tmp/relay.ipc",
		"inproc://relay",
		"TLS+TCP://example.com:443",
	} {
		assert.NoError(t, Validate(addr), addr)
	}

	for _, addr := range []string{"127.0.0.1:5555", "http://example.com", ""} {
		assert.Error(t, Validate(addr), addr)
	}
}

func TestUnsupportedSchemeFailsEveryRole(t *testing.T) {
	_, err := ListenReply("udp://x", config.Default())
	assert.Error(t, err)
	_, err = ListenPublish("udp://x", config.Default())
	assert.Error(t, err)
	_, err = DialRequest("udp://x")
	assert.Error(t, err)
	_, err = DialSubscribe("udp://x")
	assert.Error(t, err)
}

// roundTrip checks request/reply on a single context.
func roundTrip(t *testing.T, rep transport.Replier, reqAddr string) {
	t.Helper()

	x, err := rep.OpenContext()
	require.NoError(t, err)
	go func() {
		payload, err := x.Recv()
		if err == nil {
			_ = x.Send(append([]byte("re: "), payload...))
		}
	}()

	req, err := DialRequest(reqAddr)
	require.NoError(t, err)
	defer req.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reply, err := req.Request(ctx, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "re: ping", string(reply))
}

func TestNanomsgRoundTrip(t *testing.T) {
	rep, err := ListenReply("inproc://endpoint-test-rep", config.Default())
	require.NoError(t, err)
	defer rep.Close()

	roundTrip(t, rep, "inproc://endpoint-test-rep")
}

func TestWebsocketRoundTrip(t *testing.T) {
	rep, err := ListenReply("ws://127.0.0.1:0/rep", config.Default())
	require.NoError(t, err)
	defer rep.Close()

	addr := rep.(interface{ Addr() string }).Addr()
	roundTrip(t, rep, addr)
}
