package util

import (
	"context"
	"errors"
	"time"
)

// permanentError marks an error that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry gives up on it at once. Retry returns the
// wrapped error, not the marker. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxAttempts times. Waits between attempts start at
// baseDelay and double each time, capped at maxDelay when it is non-zero.
// It returns nil on the first success, the inner error of a Permanent
// failure, ctx.Err() if ctx ends while waiting, or else the last error.
func Retry(ctx context.Context, maxAttempts int, baseDelay, maxDelay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == maxAttempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
