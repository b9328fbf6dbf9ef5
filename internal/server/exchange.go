package server

import (
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// state is the position of an exchange in its receive, hold, send cycle.
type state int

const (
	stateInit state = iota
	stateRecv
	stateWait
	stateSend
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "INIT"
	case stateRecv:
		return "RECV"
	case stateWait:
		return "WAIT"
	case stateSend:
		return "SEND"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// op is the transport operation an exchange arms next.
type op int

const (
	opStop  op = iota // abandon the machine
	opRecv            // arm a receive on the context
	opSend            // arm a send of the held message
	opNext            // advance again without touching the transport
)

// completion is the outcome of an armed operation.
type completion struct {
	payload []byte
	err     error
}

// acceptFunc takes ownership of an accepted message payload.
type acceptFunc func(payload []byte)

// exchange is one context of the reply pool, cycling RECV, WAIT, SEND until
// the transport closes. advance is its completion callback; the driver in
// run calls it from one goroutine only, so an exchange never re-enters
// itself while different exchanges run concurrently.
type exchange struct {
	id     int
	state  state
	held   []byte
	ctx    transport.Exchange
	accept acceptFunc
}

func newExchange(id int, ctx transport.Exchange, accept acceptFunc) *exchange {
	return &exchange{id: id, state: stateInit, ctx: ctx, accept: accept}
}

// advance consumes the completion of the last armed operation and returns
// the next one. A non-nil error is fatal for the relay.
func (x *exchange) advance(c completion) (op, error) {
	switch x.state {
	case stateInit:
		x.state = stateRecv
		return opRecv, nil

	case stateRecv:
		if c.err != nil {
			return x.fail("receive", c.err)
		}
		if !utf8.Valid(c.payload) {
			// Answer with an empty reply so the requester is not left waiting.
			log.Printf("Exchange %d rejecting request: payload is not valid UTF-8", x.id)
			x.held = []byte{}
			x.state = stateWait
			return opNext, nil
		}
		x.accept(c.payload)
		x.held = c.payload
		x.state = stateWait
		return opNext, nil

	case stateWait:
		x.state = stateSend
		return opSend, nil

	case stateSend:
		x.held = nil
		if c.err != nil {
			return x.fail("send", c.err)
		}
		x.state = stateRecv
		return opRecv, nil

	default:
		return opStop, fmt.Errorf("exchange %d: %w: %v", x.id, transport.ErrState, x.state)
	}
}

// fail swallows closed-endpoint errors and reports everything else.
func (x *exchange) fail(what string, err error) (op, error) {
	if transport.IsClosed(err) {
		return opStop, nil
	}
	return opStop, fmt.Errorf("exchange %d %s: %w", x.id, what, err)
}

// perform carries out o on the transport and returns its completion.
func (x *exchange) perform(o op) completion {
	switch o {
	case opRecv:
		payload, err := x.ctx.Recv()
		return completion{payload: payload, err: err}
	case opSend:
		return completion{err: x.ctx.Send(x.held)}
	default:
		return completion{}
	}
}

// run drives the machine until it stops.
func (x *exchange) run() error {
	defer x.ctx.Close()

	var c completion
	for {
		o, err := x.advance(c)
		if err != nil || o == opStop {
			return err
		}
		c = x.perform(o)
	}
}
