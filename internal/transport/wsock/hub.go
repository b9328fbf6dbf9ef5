// Package wsock coordinates subscriber registration, broadcast fan-out and
// connection cleanup for a publish endpoint via the Hub type.
package wsock

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// Hub is a listening publish endpoint. It keeps the set of subscribed peers
// and delivers every published payload to each of them.
type Hub struct {
	*listener

	peers      map[*peer]bool
	broadcast  chan []byte
	register   chan *peer
	unregister chan *peer
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

var _ transport.Publisher = (*Hub)(nil)

// ListenPublish starts a publish endpoint on addr.
func ListenPublish(addr string, opts Options) (*Hub, error) {
	h := newHub()
	l, err := listen(addr, opts.withDefaults(), h.accept)
	if err != nil {
		h.cancel()
		return nil, err
	}
	h.listener = l

	go h.run()
	return h, nil
}

func newHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		peers:      make(map[*peer]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *peer),
		unregister: make(chan *peer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (h *Hub) accept(conn *websocket.Conn, r *http.Request) {
	p := newPeer(conn, r.RemoteAddr, h.opts)
	select {
	case h.register <- p:
	case <-h.ctx.Done():
		p.closeConnection()
	}
}

// Publish hands payload to the hub loop for delivery to every subscriber.
// It fails with transport.ErrClosed once the hub is closed.
func (h *Hub) Publish(payload []byte) error {
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.ctx.Done():
		return transport.ErrClosed
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.peers)
}

// run is the hub's event loop, handling registration, unregistration and
// broadcasts until the hub is closed.
func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownPeers()
			return

		case p := <-h.register:
			h.mutex.Lock()
			h.peers[p] = true
			count := len(h.peers)
			h.mutex.Unlock()
			log.Printf("Subscriber registered from %s. Total subscribers: %d", p, count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				p.writePump()
			}()
			go func() {
				defer h.wg.Done()
				p.readPump(nil, h.leave)
			}()

		case p := <-h.unregister:
			h.remove(p, "disconnected")

		case payload := <-h.broadcast:
			h.handleBroadcast(payload)
		}
	}
}

// leave is called by a peer's read pump when its connection ends.
func (h *Hub) leave(p *peer) {
	select {
	case h.unregister <- p:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(p *peer, reason string) {
	h.mutex.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	count := len(h.peers)
	h.mutex.Unlock()

	if ok {
		p.shutdown()
		log.Printf("Subscriber %s %s. Total subscribers: %d", p, reason, count)
	}
}

// handleBroadcast sends payload to every subscriber, dropping the ones whose
// send buffer is full.
func (h *Hub) handleBroadcast(payload []byte) {
	var failed []*peer
	for _, p := range h.snapshot() {
		if !p.enqueue(payload) {
			failed = append(failed, p)
		}
	}
	for _, p := range failed {
		h.remove(p, "removed due to full send buffer")
	}
}

// snapshot returns a thread-safe copy of the current subscribers
func (h *Hub) snapshot() []*peer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	return peers
}

// shutdownPeers closes every subscriber connection
func (h *Hub) shutdownPeers() {
	peers := h.snapshot()

	h.mutex.Lock()
	h.peers = make(map[*peer]bool)
	h.mutex.Unlock()

	for _, p := range peers {
		p.shutdown()
		p.closeConnection()
	}
	log.Printf("Closed %d subscriber connections", len(peers))
}

// Close stops the HTTP listener, disconnects every subscriber and waits for
// their pumps to finish or for the shutdown timeout.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		shutdownErr := h.shutdown()
		<-h.done
		if err := waitGroupTimeout(h.wg.Wait, h.opts.ShutdownTimeout); err != nil {
			log.Println("Publish endpoint shutdown timeout reached, some goroutines may still be running")
			h.closeErr = err
			return
		}
		h.closeErr = shutdownErr
	})
	return h.closeErr
}
