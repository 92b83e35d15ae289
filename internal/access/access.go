// Package access derives a list's trial/active/expired state from its stored
// timestamps. Everything here is pure; callers supply "now".
package access

import (
	"math"
	"time"
)

type Status string

const (
	StatusTrial   Status = "trial"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

const (
	DefaultTrialDays      = 14
	DefaultPaidAccessDays = 90

	dayMillis = 86_400_000
)

// Resolve returns the access status for the given timestamps. A nil timestamp
// means the period was never set. Paid access wins over an unexpired trial.
func Resolve(trialEndsAt, paidAccessEndsAt *time.Time, now time.Time) Status {
	if paidAccessEndsAt != nil && paidAccessEndsAt.After(now) {
		return StatusActive
	}
	if trialEndsAt != nil && trialEndsAt.After(now) {
		return StatusTrial
	}
	return StatusExpired
}

// RemainingDays returns the whole days left until ts, rounded up. It is 0 for
// a nil timestamp or one that is not in the future.
func RemainingDays(ts *time.Time, now time.Time) int {
	if ts == nil {
		return 0
	}
	diff := ts.UnixMilli() - now.UnixMilli()
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(float64(diff) / dayMillis))
}

// AddDays adds n calendar days, keeping the wall-clock time across DST changes.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// TrialEnd returns the stored trial end, or createdAt plus the trial length
// for records written before trial_ends_at existed.
func TrialEnd(trialEndsAt *time.Time, createdAt time.Time, trialDays int) *time.Time {
	if trialEndsAt != nil {
		return trialEndsAt
	}
	if createdAt.IsZero() {
		return nil
	}
	end := AddDays(createdAt, trialDays)
	return &end
}
