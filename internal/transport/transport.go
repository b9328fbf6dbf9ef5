// Package transport defines the four socket roles the relay talks through
// and the error taxonomy shared by their implementations.
//
// Implementations live in subpackages: wsock speaks websocket frames,
// nanomsg speaks the scalability protocols. Both map their native "socket
// closed" failures onto ErrClosed so callers can tell an orderly shutdown
// from a real failure with errors.Is.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed reports that the local endpoint was closed. It is expected
	// during shutdown and never treated as a failure.
	ErrClosed = errors.New("transport: endpoint closed")

	// ErrState reports an operation issued out of order, such as a reply
	// without a pending request.
	ErrState = errors.New("transport: incorrect state")
)

// Requester is the dialing side of a request/reply pair.
type Requester interface {
	// Request sends payload and blocks for the matching reply.
	Request(ctx context.Context, payload []byte) ([]byte, error)
	Close() error
}

// Replier is the listening side of a request/reply pair. Each Exchange it
// opens is an independent context over the shared endpoint.
type Replier interface {
	OpenContext() (Exchange, error)
	Close() error
}

// Exchange is one request/reply context. Recv and Send alternate; a Send
// without a pending request fails with ErrState.
type Exchange interface {
	Recv() ([]byte, error)
	Send(payload []byte) error
	Close() error
}

// Publisher is the listening side of a publish/subscribe pair.
type Publisher interface {
	Publish(payload []byte) error
	Close() error
}

// Subscriber is the dialing side of a publish/subscribe pair, subscribed to
// every topic.
type Subscriber interface {
	Recv() ([]byte, error)
	Close() error
}

// IsClosed reports whether err signals a closed local endpoint.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
