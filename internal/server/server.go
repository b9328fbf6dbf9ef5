// Package server implements the relay server: a pool of reply contexts that
// accept chat messages, record them in the server history and hand them to
// the broadcaster, plus the presentation loop that shows the history.
package server

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/relaychat/internal/buffer"
	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/endpoint"
	"github.com/Tyrowin/relaychat/internal/terminal"
	"github.com/Tyrowin/relaychat/internal/transport"
)

// Title is shown at the top of the server screen.
const Title = "relaychat - client-server chat, mode: server"

// Server owns the relay's endpoints, its history and the broadcaster.
type Server struct {
	cfg         config.Config
	history     *buffer.History
	replier     transport.Replier
	publisher   transport.Publisher
	broadcaster *Broadcaster
	device      terminal.Device
}

// New creates a server on already opened endpoints. device may be nil to
// run without a screen.
func New(cfg config.Config, rep transport.Replier, pub transport.Publisher, device terminal.Device) *Server {
	return &Server{
		cfg:         cfg,
		history:     buffer.NewHistory(cfg.ServerHistory),
		replier:     rep,
		publisher:   pub,
		broadcaster: NewBroadcaster(pub, cfg.BroadcastQueue),
		device:      device,
	}
}

// Listen opens the publish endpoint, then the reply endpoint, and creates a
// server on them.
func Listen(cfg config.Config, repAddr, pubAddr string, device terminal.Device) (*Server, error) {
	pub, err := endpoint.ListenPublish(pubAddr, cfg)
	if err != nil {
		return nil, err
	}
	rep, err := endpoint.ListenReply(repAddr, cfg)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	log.Printf("Relay server accepting requests on %s, broadcasting on %s", repAddr, pubAddr)
	return New(cfg, rep, pub, device), nil
}

// History returns the server's message history.
func (s *Server) History() *buffer.History {
	return s.history
}

// Broadcaster returns the server's broadcaster.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// accept records an accepted message and schedules its broadcast. The
// broadcast is queued after the history insert.
func (s *Server) accept(payload []byte) {
	s.history.PushFront(string(payload))
	s.broadcaster.Enqueue(payload)
}

// Run serves until ctx is done, the user leaves the screen, or a component
// fails. The endpoints and the device are closed before it returns; the
// first fatal error is returned.
func (s *Server) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	exchanges := make([]*exchange, 0, s.cfg.PoolSize)
	for i := 0; i < s.cfg.PoolSize; i++ {
		xctx, err := s.replier.OpenContext()
		if err != nil {
			s.closeEndpoints()
			return fmt.Errorf("open reply context %d: %w", i, err)
		}
		exchanges = append(exchanges, newExchange(i, xctx, s.accept))
	}

	if s.device != nil {
		if err := s.device.Open(); err != nil {
			s.closeEndpoints()
			return err
		}
		defer s.device.Close()
		s.device.SetTitle(Title)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		<-gctx.Done()
		s.closeEndpoints()
		return nil
	})
	g.Go(func() error {
		return s.broadcaster.Run(gctx)
	})
	for _, x := range exchanges {
		g.Go(x.run)
	}
	if s.device != nil {
		g.Go(func() error {
			defer stop()
			return terminal.Loop(gctx, s.device, s.cfg.FrameInterval, s.render, nil)
		})
	}
	log.Printf("Relay server running with %d reply contexts", len(exchanges))

	err := g.Wait()
	log.Printf("Relay server stopped")
	return err
}

func (s *Server) closeEndpoints() {
	if err := s.replier.Close(); err != nil && !transport.IsClosed(err) {
		log.Printf("Error closing reply endpoint: %v", err)
	}
	if err := s.publisher.Close(); err != nil && !transport.IsClosed(err) {
		log.Printf("Error closing publish endpoint: %v", err)
	}
}

// render draws the history, newest message at the bottom.
func (s *Server) render() {
	snapshot := s.history.Snapshot()
	s.device.Clear()
	for i, msg := range snapshot {
		s.device.Print(1, 22-i*3, msg)
	}
	s.device.Refresh()
}
