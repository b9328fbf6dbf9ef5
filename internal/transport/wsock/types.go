// Package wsock defines listener options, address parsing and error helpers
// shared by the websocket roles.
package wsock

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// RateLimit defines the per-connection request rate limit.
type RateLimit struct {
	Burst          int
	RefillInterval time.Duration
}

// Options tunes listening endpoints.
type Options struct {
	MaxMessageSize  int64
	RateLimit       RateLimit
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512
	}
	if o.RateLimit.Burst <= 0 {
		o.RateLimit.Burst = 5
	}
	if o.RateLimit.RefillInterval <= 0 {
		o.RateLimit.RefillInterval = time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	return o
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// parseAddr splits a ws:// endpoint into its listen host and socket path.
func parseAddr(addr string) (host, path string, err error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", fmt.Errorf("parse endpoint %q: %w", addr, err)
	}
	if u.Scheme != "ws" {
		return "", "", fmt.Errorf("endpoint %q: unsupported scheme %q", addr, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("endpoint %q: missing host", addr)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

func closedErr(err error) error {
	if err == nil {
		return transport.ErrClosed
	}
	return fmt.Errorf("%w: %v", transport.ErrClosed, err)
}
