// Copyright (C) 2019-2026, Norn Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package errs

import (
	"context"
	"time"
)

// Backoff implements the Recoverable-class retry policy of spec §7:
// exponential backoff starting at 100ms, doubling each attempt, capped
// at 10 retries after the first call (11 calls of fn in all).
type Backoff struct {
	Initial    time.Duration
	MaxRetries int
}

// DefaultBackoff is the policy spec §7 names explicitly.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 100 * time.Millisecond, MaxRetries: 10}
}

// Retry calls fn until it succeeds, ctx is cancelled, or MaxRetries is
// exhausted, sleeping an exponentially growing delay between attempts.
// Retry only makes sense for the Recoverable class (Network, IO timeout,
// Database.ConnectionFailed/TransactionFailed per spec §7) — callers
// should not wrap Validation/Consensus errors in it.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	delay := b.Initial
	var err error
	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == b.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
