// Package wsock constructs and runs the HTTP server behind each listening
// endpoint with helpers that apply sensible production defaults.
package wsock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// listener is the HTTP side of a listening endpoint.
type listener struct {
	srv      *http.Server
	ln       net.Listener
	path     string
	opts     Options
	origins  originPolicy
	upgrader websocket.Upgrader
	served   chan struct{}
}

// listen binds addr and serves websocket upgrades on its path, handing every
// accepted connection to accept.
func listen(addr string, opts Options, accept func(conn *websocket.Conn, r *http.Request)) (*listener, error) {
	host, path, err := parseAddr(addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", host)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	l := &listener{
		ln:      ln,
		path:    path,
		opts:    opts,
		origins: newOriginPolicy(opts.AllowedOrigins),
		served:  make(chan struct{}),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     l.origins.check,
	}
	l.srv = createServer(ln.Addr().String(), setupRoutes(path, l.socketHandler(accept)))

	go l.serve()
	return l, nil
}

// createServer creates an HTTP server with the given address and handler.
// It sets reasonable timeout values for production use.
func createServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (l *listener) serve() {
	defer close(l.served)
	log.Printf("Websocket endpoint listening on ws://%s%s", l.ln.Addr(), l.path)
	if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("Websocket endpoint on %s stopped: %v", l.ln.Addr(), err)
	}
}

// Addr returns the endpoint address actually bound, with the port resolved.
func (l *listener) Addr() string {
	return "ws://" + l.ln.Addr().String() + l.path
}

// shutdown stops accepting connections. Hijacked websocket connections are
// not tracked by the HTTP server; callers close their peers themselves.
func (l *listener) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.ShutdownTimeout)
	defer cancel()

	if err := l.srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}
	<-l.served
	return nil
}

// waitGroupTimeout waits for wait to return or gives up after timeout.
func waitGroupTimeout(wait func(), timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
