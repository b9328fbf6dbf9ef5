package server

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/Tyrowin/relaychat/internal/transport"
)

// Broadcaster publishes accepted messages from a single goroutine fed by a
// bounded queue. Enqueueing never blocks: when the queue is full the oldest
// queued payload is dropped to make room.
type Broadcaster struct {
	pub     transport.Publisher
	queue   chan []byte
	dropped atomic.Uint64
}

// NewBroadcaster creates a broadcaster publishing on pub with room for size
// queued payloads.
func NewBroadcaster(pub transport.Publisher, size int) *Broadcaster {
	if size < 1 {
		size = 1
	}
	return &Broadcaster{
		pub:   pub,
		queue: make(chan []byte, size),
	}
}

// Enqueue schedules payload for publishing.
func (b *Broadcaster) Enqueue(payload []byte) {
	for {
		select {
		case b.queue <- payload:
			return
		default:
		}
		select {
		case <-b.queue:
			n := b.dropped.Add(1)
			log.Printf("Broadcast queue full; dropped oldest message (%d dropped so far)", n)
		default:
		}
	}
}

// Dropped returns how many payloads were discarded because the queue was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Run publishes queued payloads until ctx is done or the publisher closes.
// A publish failure other than a closed endpoint is returned.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-b.queue:
			if err := b.pub.Publish(payload); err != nil {
				if transport.IsClosed(err) {
					return nil
				}
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}
