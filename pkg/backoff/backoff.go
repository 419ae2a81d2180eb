// Package backoff provides an exponential backoff policy for retrying
// transient upstream failures. The policy is a plain value so callers can
// inject deterministic settings in tests.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff: the delay before attempt n
// (0-based) is BaseDelay * 2^n, capped at MaxDelay, with up to MaxJitter of
// random jitter added when configured.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

// Default returns the policy used against rate-limited chain RPC providers.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxJitter:   100 * time.Millisecond,
	}
}

// Delay returns the backoff delay before retrying attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
	}
	return delay
}

// Sleep blocks for the attempt's backoff delay, or returns early with the
// context error if ctx is cancelled first.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
