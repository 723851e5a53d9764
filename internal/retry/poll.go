// Package retry provides a bounded, cancellable fixed-interval poller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned when the poll budget is exhausted without success
var ErrTimeout = errors.New("poll timed out")

// Policy bounds a poll loop. A zero Timeout or MaxAttempts means unbounded
// on that axis; at least one of them should be set.
type Policy struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

// Func is one poll attempt. done=true stops the loop successfully; errors
// are treated as a failed attempt and retried.
type Func func(ctx context.Context) (done bool, err error)

// Poll calls fn every Interval until it reports done, the policy budget runs
// out, or ctx is cancelled. Poll runs fn on the calling goroutine, so nothing
// keeps polling after it returns.
//
// A cancelled parent ctx yields ctx.Err(). An exhausted budget yields an
// error wrapping ErrTimeout and the last attempt error, if any.
func Poll(ctx context.Context, p Policy, fn Func) (int, error) {
	if p.Interval <= 0 {
		return 0, fmt.Errorf("poll interval must be positive")
	}

	pollCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// First attempt fires immediately, then one token per interval.
	limiter := rate.NewLimiter(rate.Every(p.Interval), 1)

	var (
		attempts int
		lastErr  error
	)
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			return attempts, exhausted(ctx, lastErr)
		}

		attempts++
		done, err := fn(pollCtx)
		if err == nil && done {
			return attempts, nil
		}
		if err != nil {
			lastErr = err
		}

		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
			return attempts, exhausted(ctx, lastErr)
		}
	}
}

// exhausted distinguishes a cancelled caller from a spent budget. limiter.Wait
// also fails early when the next token would arrive after the deadline.
func exhausted(parent context.Context, lastErr error) error {
	if err := parent.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w: last attempt: %v", ErrTimeout, lastErr)
	}
	return ErrTimeout
}

// IsTimeout reports whether err came from an exhausted poll budget
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
