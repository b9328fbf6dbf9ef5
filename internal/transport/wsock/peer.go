// Package wsock manages individual accepted websocket connections, handling
// read/write pumps, rate limiting, and lifecycle control for each peer.
package wsock

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// peer is one accepted websocket connection. Frames read from it are handed
// to onFrame; frames queued with enqueue are written by the write pump.
type peer struct {
	id             uuid.UUID
	conn           *websocket.Conn
	addr           string
	send           chan []byte
	done           chan struct{}
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimit

	mu     sync.Mutex
	closed bool
}

func newPeer(conn *websocket.Conn, addr string, opts Options) *peer {
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	return &peer{
		id:             uuid.New(),
		conn:           conn,
		addr:           addr,
		send:           make(chan []byte, sendBuffer),
		done:           make(chan struct{}),
		maxMessageSize: opts.MaxMessageSize,
		rateLimiter:    newRateLimiter(opts.RateLimit),
		rateLimit:      opts.RateLimit,
	}
}

func (p *peer) String() string {
	return p.addr + " (" + p.id.String()[:8] + ")"
}

// enqueue queues payload for the write pump. It reports false when the peer
// is gone or its send buffer is full.
func (p *peer) enqueue(payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown stops the write pump after it drains what is queued and wakes a
// read pump waiting on the rate limit.
func (p *peer) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.send)
		close(p.done)
	}
}

// setupReadConnection configures read deadlines and pong handler for the connection
func (p *peer) setupReadConnection() {
	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", p, err)
	}
	p.conn.SetPongHandler(func(string) error {
		if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", p, err)
		}
		return nil
	})
}

// handleReadError logs the reason a read loop ends.
func (p *peer) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", p, p.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Peer %s disconnected: %v", p, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Peer %s connection closed: %v", p, err)
	default:
		log.Printf("Websocket read error from %s: %v", p, err)
	}
}

// throttle blocks until the rate limit admits another frame, so a requester
// over its limit is slowed down rather than left without a reply. It reports
// false if the peer shuts down while waiting.
func (p *peer) throttle() bool {
	if p.rateLimiter == nil {
		return true
	}
	logged := false
	for {
		wait := p.rateLimiter.take()
		if wait == 0 {
			return true
		}
		if !logged {
			log.Printf("Rate limit exceeded for %s (%d messages per %s); delaying request", p, p.rateLimit.Burst, p.rateLimit.RefillInterval)
			logged = true
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-p.done:
			timer.Stop()
			return false
		}
	}
}

// readPump reads frames until the connection fails. onFrame may be nil for
// peers whose inbound frames carry nothing; it returns false to stop reading.
func (p *peer) readPump(onFrame func(p *peer, payload []byte) bool, onClose func(p *peer)) {
	defer func() {
		onClose(p)
		p.closeConnection()
	}()

	p.setupReadConnection()

	for {
		_, payload, err := p.conn.ReadMessage()
		if err != nil {
			p.handleReadError(err)
			return
		}

		if onFrame == nil {
			continue
		}
		if !p.throttle() {
			return
		}

		if !onFrame(p, payload) {
			return
		}
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.closeConnection()
	}()

	for p.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (p *peer) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case payload, ok := <-p.send:
		if !ok {
			return p.writeCloseMessage()
		}
		return p.writeFrame(payload)
	case <-ticker.C:
		return p.handlePing()
	}
}

// closeConnection safely closes the connection with proper error handling
func (p *peer) closeConnection() {
	if err := p.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing connection for %s: %v", p, err)
	}
}

// writeCloseMessage sends a close frame to the peer
func (p *peer) writeCloseMessage() bool {
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := p.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		log.Printf("Error writing close message to %s: %v", p, err)
	}
	return false
}

// writeFrame writes one payload as a single text frame. Payloads contain
// newlines, so queued frames are never coalesced.
func (p *peer) writeFrame(payload []byte) bool {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", p, err)
		return false
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("Error writing message to %s: %v", p, err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (p *peer) handlePing() bool {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", p, err)
		return false
	}
	if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", p, err)
		return false
	}
	return true
}
