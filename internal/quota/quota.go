// Package quota enforces the per-day distinct-address allowance attached to
// each subscription tier. Re-querying an address already counted today is
// free; only new addresses consume quota.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Ledger records distinct queried addresses per (user, tier, UTC day).
type Ledger interface {
	// Record counts address against the caller's daily allowance. It
	// returns whether the request may proceed and how many distinct
	// addresses the day now holds. Recording the same address twice on
	// one day is idempotent and always allowed.
	Record(ctx context.Context, user, tier, address string, limit int) (allowed bool, used int, err error)
}

// dayKey identifies one user's allowance bucket for the current UTC day.
func dayKey(user, tier string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", user, tier, now.UTC().Format("2006-01-02"))
}

// untilNextUTCDay returns how long the current day's bucket should live.
// An hour of slack keeps a bucket readable just past midnight.
func untilNextUTCDay(now time.Time) time.Duration {
	next := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now.UTC()) + time.Hour
}

// MemoryLedger is a process-local Ledger for tests and single-instance
// deployments without Redis.
type MemoryLedger struct {
	mu      sync.Mutex
	day     string
	buckets map[string]map[string]struct{}
	now     func() time.Time
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		buckets: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Record implements Ledger.
func (l *MemoryLedger) Record(_ context.Context, user, tier, address string, limit int) (bool, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Buckets from previous days are garbage; same-day buckets of other
	// users must survive.
	if day := now.UTC().Format("2006-01-02"); day != l.day {
		l.day = day
		l.buckets = make(map[string]map[string]struct{})
	}

	key := dayKey(user, tier, now)
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = make(map[string]struct{})
		l.buckets[key] = bucket
	}

	if _, counted := bucket[address]; counted {
		return true, len(bucket), nil
	}
	if len(bucket) >= limit {
		return false, len(bucket), nil
	}

	bucket[address] = struct{}{}
	return true, len(bucket), nil
}
