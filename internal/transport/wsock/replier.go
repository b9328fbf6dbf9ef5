package wsock

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// request is a frame read from a requesting peer, waiting for a context.
type request struct {
	from    *peer
	payload []byte
}

// Replier is a listening reply endpoint. Requests from every connected peer
// go into one queue; each context takes the next request and answers it on
// the peer it came from.
type Replier struct {
	*listener

	inbound   chan request
	done      chan struct{}
	mu        sync.Mutex
	peers     map[*peer]struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Replier = (*Replier)(nil)

// ListenReply starts a reply endpoint on addr.
func ListenReply(addr string, opts Options) (*Replier, error) {
	r := &Replier{
		inbound: make(chan request),
		done:    make(chan struct{}),
		peers:   make(map[*peer]struct{}),
	}
	l, err := listen(addr, opts.withDefaults(), r.accept)
	if err != nil {
		return nil, err
	}
	r.listener = l
	return r, nil
}

func (r *Replier) accept(conn *websocket.Conn, req *http.Request) {
	p := newPeer(conn, req.RemoteAddr, r.opts)

	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		p.closeConnection()
		return
	default:
	}
	r.peers[p] = struct{}{}
	count := len(r.peers)
	r.wg.Add(2)
	r.mu.Unlock()
	log.Printf("Requester connected from %s. Total requesters: %d", p, count)

	go func() {
		defer r.wg.Done()
		p.writePump()
	}()
	go func() {
		defer r.wg.Done()
		p.readPump(r.queue, r.leave)
	}()
}

// queue blocks the peer's read pump until a context takes the request.
func (r *Replier) queue(p *peer, payload []byte) bool {
	select {
	case r.inbound <- request{from: p, payload: payload}:
		return true
	case <-r.done:
		return false
	}
}

func (r *Replier) leave(p *peer) {
	r.mu.Lock()
	_, ok := r.peers[p]
	delete(r.peers, p)
	count := len(r.peers)
	r.mu.Unlock()

	if ok {
		p.shutdown()
		log.Printf("Requester %s disconnected. Total requesters: %d", p, count)
	}
}

// OpenContext opens a new context on the shared request queue.
func (r *Replier) OpenContext() (transport.Exchange, error) {
	select {
	case <-r.done:
		return nil, transport.ErrClosed
	default:
	}
	return &exchange{replier: r, closed: make(chan struct{})}, nil
}

// Close stops accepting, disconnects every requester and fails pending and
// future context operations with transport.ErrClosed.
func (r *Replier) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		close(r.done)
		peers := make([]*peer, 0, len(r.peers))
		for p := range r.peers {
			peers = append(peers, p)
		}
		r.peers = make(map[*peer]struct{})
		r.mu.Unlock()

		shutdownErr := r.shutdown()
		for _, p := range peers {
			p.shutdown()
			p.closeConnection()
		}
		log.Printf("Closed %d requester connections", len(peers))

		if err := waitGroupTimeout(r.wg.Wait, r.opts.ShutdownTimeout); err != nil {
			log.Println("Reply endpoint shutdown timeout reached, some goroutines may still be running")
			r.closeErr = err
			return
		}
		r.closeErr = shutdownErr
	})
	return r.closeErr
}

// exchange is one reply context. It is driven by a single goroutine, so
// pending needs no locking.
type exchange struct {
	replier   *Replier
	pending   *peer
	closed    chan struct{}
	closeOnce sync.Once
}

func (x *exchange) Recv() ([]byte, error) {
	x.pending = nil
	select {
	case req := <-x.replier.inbound:
		x.pending = req.from
		return req.payload, nil
	case <-x.replier.done:
		return nil, transport.ErrClosed
	case <-x.closed:
		return nil, transport.ErrClosed
	}
}

// Send answers the pending request. A reply to a requester that has already
// gone away is dropped.
func (x *exchange) Send(payload []byte) error {
	select {
	case <-x.replier.done:
		return transport.ErrClosed
	case <-x.closed:
		return transport.ErrClosed
	default:
	}
	if x.pending == nil {
		return transport.ErrState
	}
	p := x.pending
	x.pending = nil
	if !p.enqueue(payload) {
		log.Printf("Dropping reply to %s: requester gone or not reading", p)
	}
	return nil
}

func (x *exchange) Close() error {
	x.closeOnce.Do(func() { close(x.closed) })
	return nil
}
