// Package client implements the chat client: a subscription feed filling
// the history, and a presentation loop that draws it, edits one line of
// input and submits it on Enter.
package client

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/relaychat/internal/buffer"
	"github.com/Tyrowin/relaychat/internal/config"
	"github.com/Tyrowin/relaychat/internal/endpoint"
	"github.com/Tyrowin/relaychat/internal/terminal"
	"github.com/Tyrowin/relaychat/internal/transport"
)

// Title is shown at the top of the client screen.
const Title = "relaychat - client-server chat, mode: client"

const (
	historyBottom = 17
	rowsPerEntry  = 3
	separatorRow  = 21
	separatorLen  = 78
	promptRow     = 23
	prompt        = "> "
)

// Client owns the client's endpoints, buffers and device.
type Client struct {
	cfg        config.Config
	history    *buffer.History
	edit       *buffer.Edit
	requester  transport.Requester
	subscriber transport.Subscriber
	feed       *Feed
	submitter  *Submitter
	device     terminal.Device
}

// New creates a client on already opened endpoints. device may be nil, in
// which case Run only feeds the history.
func New(cfg config.Config, req transport.Requester, sub transport.Subscriber, device terminal.Device) *Client {
	history := buffer.NewHistory(cfg.ClientHistory)
	edit := buffer.NewEdit(cfg.EditCapacity)
	return &Client{
		cfg:        cfg,
		history:    history,
		edit:       edit,
		requester:  req,
		subscriber: sub,
		feed:       NewFeed(sub, history),
		submitter:  NewSubmitter(req, edit, cfg.RequestTimeout),
		device:     device,
	}
}

// Dial connects the subscription, then the request endpoint, and creates a
// client on them.
func Dial(cfg config.Config, reqAddr, subAddr string, device terminal.Device) (*Client, error) {
	sub, err := endpoint.DialSubscribe(subAddr)
	if err != nil {
		return nil, err
	}
	req, err := endpoint.DialRequest(reqAddr)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}
	log.Printf("Client connected: requests to %s, subscribed to %s", reqAddr, subAddr)
	return New(cfg, req, sub, device), nil
}

// History returns the client's message history.
func (c *Client) History() *buffer.History {
	return c.history
}

// Edit returns the client's input line.
func (c *Client) Edit() *buffer.Edit {
	return c.edit
}

// Submitter returns the client's submitter.
func (c *Client) Submitter() *Submitter {
	return c.submitter
}

// Run feeds and presents until ctx is done, the user leaves the screen, or a
// component fails. Endpoints and the device are closed before it returns.
func (c *Client) Run(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if c.device != nil {
		if err := c.device.Open(); err != nil {
			c.closeEndpoints()
			return err
		}
		defer c.device.Close()
		c.device.SetTitle(Title)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		<-gctx.Done()
		c.feed.Stop()
		c.closeEndpoints()
		return nil
	})
	g.Go(func() error {
		return c.feed.Run(gctx)
	})
	if c.device != nil {
		g.Go(func() error {
			defer stop()
			return terminal.Loop(gctx, c.device, c.cfg.FrameInterval, c.render, func(ev terminal.Event) (bool, error) {
				return c.handle(gctx, ev)
			})
		})
	}

	err := g.Wait()
	log.Printf("Client stopped")
	return err
}

func (c *Client) closeEndpoints() {
	if err := c.subscriber.Close(); err != nil && !transport.IsClosed(err) {
		log.Printf("Error closing subscription: %v", err)
	}
	if err := c.requester.Close(); err != nil && !transport.IsClosed(err) {
		log.Printf("Error closing request endpoint: %v", err)
	}
}

// handle applies one key to the edit line. A submit interrupted by shutdown
// ends the loop quietly.
func (c *Client) handle(ctx context.Context, ev terminal.Event) (bool, error) {
	switch ev.Key {
	case terminal.KeyEnter:
		if _, err := c.submitter.Submit(ctx); err != nil {
			if ctx.Err() != nil || transport.IsClosed(err) {
				return true, nil
			}
			return false, err
		}
	case terminal.KeyBackspace:
		c.edit.Backspace()
	case terminal.KeyRune:
		if ev.Printable() {
			c.edit.Append(ev.Rune)
		}
	}
	return false, nil
}

// render draws the history above the separator, newest entry lowest, and
// the prompt with the edit line below it.
func (c *Client) render() {
	snapshot := c.history.Snapshot()
	c.device.Clear()
	for i, msg := range snapshot {
		c.device.Print(1, historyBottom-i*rowsPerEntry, msg)
	}
	for x := 1; x <= separatorLen; x++ {
		c.device.Put(x, separatorRow, '-')
	}
	c.device.Print(1, promptRow, prompt+c.edit.String())
	c.device.Refresh()
}
