// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Login throttling configuration.
const (
	// LockoutDuration is how long failures are remembered. A user who
	// reaches LockoutThreshold stays locked until the count expires.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of failures that triggers a lockout.
	LockoutThreshold = 7

	// MaxFailureDelay caps the progressive delay before a lockout.
	MaxFailureDelay = 32 * time.Second
)

// FailureCount is a user's consecutive failed logins and how long until
// the count expires.
type FailureCount struct {
	Count     int
	Remaining time.Duration
}

// FailureStore counts consecutive failed logins per user in the fast store.
type FailureStore interface {
	// Failures returns the current count. An unknown user has a zero count.
	Failures(ctx context.Context, userID uuid.UUID) (FailureCount, error)
	// RecordFailure increments the count and restarts its expiry window.
	RecordFailure(ctx context.Context, userID uuid.UUID, window time.Duration) (FailureCount, error)
	// ResetFailures drops the count.
	ResetFailures(ctx context.Context, userID uuid.UUID) error
}

// ThrottleResult is the verdict for the next login attempt.
type ThrottleResult struct {
	// Delay is the time to wait before verifying the password.
	Delay time.Duration

	// IsLockedOut indicates the account is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the throttle state for a failure count.
func CheckFailures(f FailureCount) ThrottleResult {
	if f.Count >= LockoutThreshold {
		remaining := f.Remaining
		if remaining <= 0 {
			remaining = LockoutDuration
		}
		return ThrottleResult{IsLockedOut: true, LockoutRemaining: remaining}
	}
	if f.Count <= 0 {
		return ThrottleResult{}
	}

	// Progressive delay: 2^(failures-1) seconds.
	delay := time.Duration(1<<(f.Count-1)) * time.Second
	if delay > MaxFailureDelay {
		delay = MaxFailureDelay
	}
	return ThrottleResult{Delay: delay}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
