package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/relaychat/internal/buffer"
	"github.com/Tyrowin/relaychat/internal/message"
	"github.com/Tyrowin/relaychat/internal/transport"
)

// Submitter sends the edit line as one request and clears it once the
// request completes. The reply is only an acknowledgement and is discarded.
type Submitter struct {
	req     transport.Requester
	edit    *buffer.Edit
	timeout time.Duration
	now     func() time.Time
}

// NewSubmitter creates a submitter sending on req from edit. A request not
// answered within timeout fails; zero means no limit.
func NewSubmitter(req transport.Requester, edit *buffer.Edit, timeout time.Duration) *Submitter {
	return &Submitter{req: req, edit: edit, timeout: timeout, now: time.Now}
}

// Submit sends the current edit line. An empty line sends nothing and
// reports false. The request runs on its own goroutine so a panic in the
// transport comes back as an error, but Submit waits for it either way.
func (s *Submitter) Submit(ctx context.Context) (bool, error) {
	text := s.edit.String()
	if text == "" {
		return false, nil
	}
	msg := message.New(s.now(), text)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("request worker panicked: %v", r)
			}
		}()
		_, err := s.req.Request(ctx, msg.Bytes())
		done <- err
	}()

	if err := <-done; err != nil {
		return false, fmt.Errorf("submit: %w", err)
	}
	s.edit.Clear()
	return true, nil
}
