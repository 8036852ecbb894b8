package longpoll

import "context"

// Channel streams values from ch to handler until ch closes or ctx is
// canceled. It returns ctx.Err() on cancellation, nil once ch closes, or the
// first error handler returns (which also stops the stream).
//
// Channel backs loggerd's read-stream follow mode: entries found by a
// directory-polling goroutine arrive on ch and are written to the client one
// frame at a time, so unlike a windowed long-poll there's no batching to
// configure — every value is handled as soon as it's received.
func Channel[T any](ctx context.Context, ch <-chan T, handler func(value T) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case value, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(value); err != nil {
				return err
			}
		}
	}
}
