// Package retry holds the capped exponential backoff shared by the run
// scheduler and the provider cascade.
package retry

import (
	"context"
	"time"
)

// Next doubles current, capped at maxBackoff.
func Next(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// Sleep waits for d or until ctx is done. It reports whether the caller
// should carry on.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
