// Package clock holds time helpers shared by the polling services.
package clock

import (
	"context"
	"time"
)

// Sleep waits for d or until ctx is done, whichever comes first. A
// non-positive d only reports whether ctx is already done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff doubles d up to limit.
func Backoff(d, limit time.Duration) time.Duration {
	if d <= 0 {
		return min(time.Second, limit)
	}
	return min(2*d, limit)
}
