package client

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/Tyrowin/relaychat/internal/buffer"
	"github.com/Tyrowin/relaychat/internal/transport"
)

// Feed copies every broadcast from a subscription into the client history.
type Feed struct {
	sub     transport.Subscriber
	history *buffer.History
	stop    atomic.Bool
}

// NewFeed creates a feed from sub into history.
func NewFeed(sub transport.Subscriber, history *buffer.History) *Feed {
	return &Feed{sub: sub, history: history}
}

// Stop asks the feed to finish. The flag is checked before each receive, so
// a receive already blocked completes first unless the subscription is
// closed.
func (f *Feed) Stop() {
	f.stop.Store(true)
}

// Run receives until stopped, ctx is done or the subscription closes. Any
// other receive failure is returned.
func (f *Feed) Run(ctx context.Context) error {
	for !f.stop.Load() && ctx.Err() == nil {
		payload, err := f.sub.Recv()
		if err != nil {
			if transport.IsClosed(err) {
				return nil
			}
			return fmt.Errorf("subscription: %w", err)
		}
		f.history.PushFront(string(payload))
	}
	log.Printf("Subscription feed stopped")
	return nil
}
