package core

import (
	"context"
	"time"
)

// DefaultRetryDelay is the linear backoff base between batch attempts.
const DefaultRetryDelay = time.Second

// BackoffPolicy decides how long to wait after a failed attempt.
// attempt is the one-based number of the attempt that just failed.
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// LinearBackoff waits Base * attempt.
type LinearBackoff struct {
	Base time.Duration
}

// NextDelay implements BackoffPolicy.
func (b LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return b.Base * time.Duration(attempt)
}

// SleepFunc pauses for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
