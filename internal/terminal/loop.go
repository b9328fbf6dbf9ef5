package terminal

import (
	"context"
	"time"
)

// Handler reacts to one input event. Returning done ends the loop; a
// non-nil error ends it with that error.
type Handler func(ev Event) (done bool, err error)

// Loop alternates rendering and input handling on d until the handler
// finishes, ctx is done, or the user presses Escape or closes the terminal.
// Between frames it waits for interval instead of spinning.
func Loop(ctx context.Context, d Device, interval time.Duration, render func(), handle Handler) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		render()

		for d.HasInput() {
			ev := d.ReadKey()
			if ev.Key == KeyEscape || ev.Key == KeyClose {
				return nil
			}
			if handle == nil {
				continue
			}
			done, err := handle(ev)
			if err != nil || done {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
