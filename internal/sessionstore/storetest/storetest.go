// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package storetest holds behavior tests shared by every auth.SessionStore
// and auth.FailureStore implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktrail/tasktrail/internal/auth"
)

// ConcurrentAppends is how many appends race in TestConcurrentAppend.
const ConcurrentAppends = 32

// Factory returns an empty store that lives until the test ends.
type Factory func(t *testing.T) auth.SessionStore

// Run exercises the behavior every session store must share.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("get on unknown user is empty", func(t *testing.T) { testGetEmpty(t, newStore(t)) })
	t.Run("append preserves order", func(t *testing.T) { testAppendOrder(t, newStore(t)) })
	t.Run("users are isolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("expired sessions are kept", func(t *testing.T) { testKeepsExpired(t, newStore(t)) })
	t.Run("rejects invalid session", func(t *testing.T) { testRejectsInvalid(t, newStore(t)) })
	t.Run("concurrent appends lose nothing", func(t *testing.T) { testConcurrentAppend(t, newStore(t)) })
}

func newSession(t *testing.T, now time.Time) auth.Session {
	t.Helper()
	s, err := auth.NewSession("Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0 Safari/537.36", now)
	require.NoError(t, err)
	return s
}

func testGetEmpty(t *testing.T, store auth.SessionStore) {
	list, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func testAppendOrder(t *testing.T, store auth.SessionStore) {
	ctx := context.Background()
	user := uuid.New()
	now := time.Now()

	var want auth.SessionList
	for i := 0; i < 3; i++ {
		s := newSession(t, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Append(ctx, user, s))
		want = append(want, s)
	}

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func testIsolation(t *testing.T, store auth.SessionStore) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	now := time.Now()

	sa := newSession(t, now)
	sb := newSession(t, now)
	require.NoError(t, store.Append(ctx, alice, sa))
	require.NoError(t, store.Append(ctx, bob, sb))

	got, err := store.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionList{sa}, got)

	got, err = store.Get(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, auth.SessionList{sb}, got)
}

func testKeepsExpired(t *testing.T, store auth.SessionStore) {
	ctx := context.Background()
	user := uuid.New()
	old := newSession(t, time.Now().Add(-48*time.Hour))
	require.NoError(t, store.Append(ctx, user, old))

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Expired(time.Now()))
	assert.Empty(t, got.Active(time.Now()))
}

func testRejectsInvalid(t *testing.T, store auth.SessionStore) {
	ctx := context.Background()
	user := uuid.New()
	require.Error(t, store.Append(ctx, user, auth.Session{Expires: time.Now().Unix()}))

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testConcurrentAppend(t *testing.T, store auth.SessionStore) {
	ctx := context.Background()
	user := uuid.New()
	now := time.Now()

	sessions := make([]auth.Session, ConcurrentAppends)
	for i := range sessions {
		sessions[i] = newSession(t, now)
	}

	var wg sync.WaitGroup
	errs := make(chan error, ConcurrentAppends)
	for _, s := range sessions {
		wg.Add(1)
		go func(s auth.Session) {
			defer wg.Done()
			if err := store.Append(ctx, user, s); err != nil {
				errs <- fmt.Errorf("append %s: %w", s.Token[:8], err)
			}
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := store.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, ConcurrentAppends)
	for _, s := range sessions {
		_, ok := got.Find(s.Token)
		assert.True(t, ok, "session %s lost", s.Token[:8])
	}
}

// FailureFactory returns an empty failure store that lives until the test ends.
type FailureFactory func(t *testing.T) auth.FailureStore

// RunFailures exercises the behavior every login failure store must share.
func RunFailures(t *testing.T, newStore FailureFactory) {
	t.Helper()
	t.Run("unknown user has no failures", func(t *testing.T) { testFailuresEmpty(t, newStore(t)) })
	t.Run("record increments per user", func(t *testing.T) { testRecordIncrements(t, newStore(t)) })
	t.Run("reset clears the count", func(t *testing.T) { testResetFailures(t, newStore(t)) })
	t.Run("concurrent records are all counted", func(t *testing.T) { testConcurrentRecord(t, newStore(t)) })
}

func testFailuresEmpty(t *testing.T, store auth.FailureStore) {
	f, err := store.Failures(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, auth.FailureCount{}, f)
}

func testRecordIncrements(t *testing.T, store auth.FailureStore) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	for i := 1; i <= 3; i++ {
		f, err := store.RecordFailure(ctx, alice, auth.LockoutDuration)
		require.NoError(t, err)
		assert.Equal(t, i, f.Count)
	}
	_, err := store.RecordFailure(ctx, bob, auth.LockoutDuration)
	require.NoError(t, err)

	f, err := store.Failures(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count)
	assert.Positive(t, f.Remaining)
	assert.LessOrEqual(t, f.Remaining, auth.LockoutDuration)

	f, err = store.Failures(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Count)
}

func testResetFailures(t *testing.T, store auth.FailureStore) {
	ctx := context.Background()
	user := uuid.New()

	_, err := store.RecordFailure(ctx, user, auth.LockoutDuration)
	require.NoError(t, err)
	require.NoError(t, store.ResetFailures(ctx, user))
	require.NoError(t, store.ResetFailures(ctx, user))

	f, err := store.Failures(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, f.Count)
}

func testConcurrentRecord(t *testing.T, store auth.FailureStore) {
	ctx := context.Background()
	user := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, ConcurrentAppends)
	for i := 0; i < ConcurrentAppends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.RecordFailure(ctx, user, auth.LockoutDuration); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	f, err := store.Failures(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, ConcurrentAppends, f.Count)
}
