package wsock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/transport"
)

const handshakeTimeout = 5 * time.Second

func dial(addr string) (*websocket.Conn, error) {
	if _, _, err := parseAddr(addr); err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.Dial(addr, http.Header{})
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// closeConn sends a normal close frame and closes the connection.
func closeConn(conn *websocket.Conn) error {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		return err
	}
	return nil
}

// Requester is a dialed request endpoint. A background reader keeps the
// connection answering keepalive pings while no request is in flight.
type Requester struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	replies chan []byte
	done    chan struct{}
	readErr error
	closed  atomic.Bool
}

var _ transport.Requester = (*Requester)(nil)

// DialRequest connects a requester to the reply endpoint at addr.
func DialRequest(addr string) (*Requester, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	r := &Requester{
		conn:    conn,
		replies: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Requester) readLoop() {
	defer close(r.done)
	for {
		_, payload, err := r.conn.ReadMessage()
		if err != nil {
			r.readErr = err
			return
		}
		select {
		case r.replies <- payload:
		default:
			// Nobody is waiting: a reply to an abandoned request.
		}
	}
}

func (r *Requester) connErr(err error) error {
	if r.closed.Load() {
		return closedErr(err)
	}
	return fmt.Errorf("request connection lost: %w", err)
}

// Request sends payload as one frame and waits for the reply frame.
// Requests on one Requester are serialized.
func (r *Requester) Request(ctx context.Context, payload []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.replies:
	default:
	}

	if err := r.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return nil, r.connErr(err)
	}
	if err := r.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, r.connErr(err)
	}

	select {
	case reply := <-r.replies:
		return reply, nil
	case <-r.done:
		return nil, r.connErr(r.readErr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the connection; pending and later requests fail with
// transport.ErrClosed.
func (r *Requester) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return closeConn(r.conn)
}

// Subscriber is a dialed subscription to a publish endpoint.
type Subscriber struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

var _ transport.Subscriber = (*Subscriber)(nil)

// DialSubscribe connects a subscriber to the publish endpoint at addr.
func DialSubscribe(addr string) (*Subscriber, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn}, nil
}

// Recv blocks for the next published payload. A local Close yields
// transport.ErrClosed; the publisher going away is reported as a failure.
func (s *Subscriber) Recv() ([]byte, error) {
	_, payload, err := s.conn.ReadMessage()
	if err == nil {
		return payload, nil
	}
	if s.closed.Load() {
		return nil, closedErr(err)
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return nil, fmt.Errorf("publisher closed the subscription: %w", err)
	}
	return nil, fmt.Errorf("subscription lost: %w", err)
}

// Close closes the connection, unblocking a pending Recv.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return closeConn(s.conn)
}
