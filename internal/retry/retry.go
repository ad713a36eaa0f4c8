// Package retry provides a bounded fixed-delay retry policy shared by
// the API session's 412 cooldown loop and the media fetcher.
package retry

import (
	"context"
	"time"
)

// Policy bounds repeated attempts of one operation with a fixed pause
// between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the pause between attempts.
	Delay time.Duration
}

// Do runs op until it succeeds, the attempt budget is exhausted, the
// error is not retryable, or ctx is done. The last attempt's error is
// returned on exhaustion. A nil retryable retries every error.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		if err := Sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Sleep waits d or until ctx is done, whichever comes first.
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
