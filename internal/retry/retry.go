// Package retry provides exponential-backoff retries for transient
// provider failures. Policies are applied explicitly at the call sites
// that need them: connector sends and inbound polls.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the delivery contract used by all connectors:
// three attempts, one second base delay, doubling between attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2.0,
	}
}

// Do runs op until it succeeds, the policy is exhausted, or the context
// is cancelled. The wait before retry attempt n is BaseDelay*Multiplier^n.
// After the last failure the final error is returned to the caller, who
// decides whether to log and swallow it.
func Do(ctx context.Context, p Policy, name string, op func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		slog.Warn("Operation failed, retrying",
			"op", name,
			"attempt", attempt+1,
			"delay", delay,
			"error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, p.MaxAttempts, lastErr)
}
