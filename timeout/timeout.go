// Package timeout implements the gateway's timeout wrapper (spec §4.7):
// run a handler under a deadline and, on expiry, cancel it and surface a
// DeadlineExceeded error rather than let the caller hang.
package timeout

import (
	"context"
	"errors"
	"time"
)

// ErrDeadlineExceeded is returned when the wrapped operation does not
// complete before the configured timeout.
var ErrDeadlineExceeded = errors.New("timeout: deadline exceeded")

// Run executes fn under a deadline of seconds from now. seconds <= 0
// means "immediate timeout" — fn is still started, but the deadline is
// already expired, per spec §4.7. fn must observe ctx cancellation to be
// interruptible; a synchronous CPU-bound body cannot be interrupted and
// will simply run to completion after ErrDeadlineExceeded has already
// been returned to the caller.
func Run(parent context.Context, seconds float64, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, time.Duration(seconds*float64(time.Second)))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrDeadlineExceeded
	}
}
