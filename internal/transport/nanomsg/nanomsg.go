// Package nanomsg implements the relay transport roles on the scalability
// protocols (REQ/REP and PUB/SUB) using mangos. Addresses use the usual SP
// schemes: tcp://, ipc://, inproc:// and tls+tcp://.
package nanomsg

import (
	"context"
	"errors"
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register every SP transport so any supported scheme can be dialed.
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// mapErr folds mangos close errors into transport.ErrClosed.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mangos.ErrClosed) {
		return fmt.Errorf("%w: %v", transport.ErrClosed, err)
	}
	if errors.Is(err, mangos.ErrProtoState) {
		return fmt.Errorf("%w: %v", transport.ErrState, err)
	}
	return err
}

// Replier is a listening REP socket.
type Replier struct {
	sock mangos.Socket
}

// ListenReply opens a REP socket listening on addr.
func ListenReply(addr string) (*Replier, error) {
	sock, err := rep.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("open rep socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Replier{sock: sock}, nil
}

// OpenContext opens an independent REP context on the socket.
func (r *Replier) OpenContext() (transport.Exchange, error) {
	ctx, err := r.sock.OpenContext()
	if err != nil {
		return nil, mapErr(err)
	}
	return &exchange{ctx: ctx}, nil
}

// Close closes the socket and every context opened on it.
func (r *Replier) Close() error {
	return mapErr(r.sock.Close())
}

type exchange struct {
	ctx mangos.Context
}

func (x *exchange) Recv() ([]byte, error) {
	payload, err := x.ctx.Recv()
	return payload, mapErr(err)
}

func (x *exchange) Send(payload []byte) error {
	return mapErr(x.ctx.Send(payload))
}

func (x *exchange) Close() error {
	return mapErr(x.ctx.Close())
}

// Requester is a dialing REQ socket.
type Requester struct {
	sock mangos.Socket
}

// DialRequest opens a REQ socket connected to addr.
func DialRequest(addr string) (*Requester, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("open req socket: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Requester{sock: sock}, nil
}

// Request sends payload on a fresh REQ context and waits for the reply.
// Cancelling ctx closes the context, which abandons the request.
func (r *Requester) Request(ctx context.Context, payload []byte) ([]byte, error) {
	rctx, err := r.sock.OpenContext()
	if err != nil {
		return nil, mapErr(err)
	}
	defer rctx.Close()

	stop := context.AfterFunc(ctx, func() { _ = rctx.Close() })
	defer stop()

	if err := rctx.Send(payload); err != nil {
		return nil, r.requestErr(ctx, err)
	}
	reply, err := rctx.Recv()
	if err != nil {
		return nil, r.requestErr(ctx, err)
	}
	return reply, nil
}

func (r *Requester) requestErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return mapErr(err)
}

// Close closes the socket.
func (r *Requester) Close() error {
	return mapErr(r.sock.Close())
}

// Publisher is a listening PUB socket.
type Publisher struct {
	sock mangos.Socket
}

// ListenPublish opens a PUB socket listening on addr.
func ListenPublish(addr string) (*Publisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("open pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Publisher{sock: sock}, nil
}

// Publish sends payload to every connected subscriber.
func (p *Publisher) Publish(payload []byte) error {
	return mapErr(p.sock.Send(payload))
}

// Close closes the socket.
func (p *Publisher) Close() error {
	return mapErr(p.sock.Close())
}

// Subscriber is a dialing SUB socket subscribed to everything.
type Subscriber struct {
	sock mangos.Socket
}

// DialSubscribe opens a SUB socket with an empty topic filter and connects
// it to addr.
func DialSubscribe(addr string) (*Subscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("open sub socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte{}); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Subscriber{sock: sock}, nil
}

// Recv blocks for the next published payload.
func (s *Subscriber) Recv() ([]byte, error) {
	payload, err := s.sock.Recv()
	return payload, mapErr(err)
}

// Close closes the socket, unblocking a pending Recv with ErrClosed.
func (s *Subscriber) Close() error {
	return mapErr(s.sock.Close())
}
