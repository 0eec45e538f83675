// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package rediskv stores session lists in Redis, one list key per user, and
// login failure counters as expiring integer keys.
package rediskv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/tasktrail/tasktrail/internal/auth"
)

// Key prefixes.
const (
	KeyPrefix        = "sessions:"
	FailureKeyPrefix = "login_failures:"
)

// Store is an auth.SessionStore backed by Redis lists. Append is a single
// RPUSH, so concurrent logins for one user never overwrite each other.
type Store struct {
	client redis.UniversalClient
}

// New wraps an existing client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Open connects to the Redis server at url (redis:// or rediss://) and
// checks it responds.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("SESSION_STORE_CONFIG_INVALID").Wrapf(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("SESSION_STORE_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return &Store{client: client}, nil
}

// Key returns the Redis key holding userID's sessions.
func Key(userID uuid.UUID) string {
	return KeyPrefix + userID.String()
}

// Append implements auth.SessionStore.
func (s *Store) Append(ctx context.Context, userID uuid.UUID, session auth.Session) error {
	if err := auth.ValidateSession(session); err != nil {
		return err
	}
	data, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	if err := s.client.RPush(ctx, Key(userID), data).Err(); err != nil {
		return oops.Code("SESSION_APPEND_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// Get implements auth.SessionStore.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (auth.SessionList, error) {
	raw, err := s.client.LRange(ctx, Key(userID), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	list := make(auth.SessionList, 0, len(raw))
	for i, item := range raw {
		var session auth.Session
		if err := json.Unmarshal([]byte(item), &session); err != nil {
			return nil, oops.Code("SESSION_DECODE_FAILED").
				With("user_id", userID.String()).
				With("index", i).
				Wrap(err)
		}
		list = append(list, session)
	}
	return list, nil
}

// FailureKey returns the Redis key counting userID's failed logins.
func FailureKey(userID uuid.UUID) string {
	return FailureKeyPrefix + userID.String()
}

// Failures implements auth.FailureStore.
func (s *Store) Failures(ctx context.Context, userID uuid.UUID) (auth.FailureCount, error) {
	key := FailureKey(userID)
	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return auth.FailureCount{}, nil
	}
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_GET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	count, err := get.Int()
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_DECODE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	// PTTL reports -1 or -2 for keys without expiry.
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return auth.FailureCount{Count: count, Remaining: remaining}, nil
}

// RecordFailure implements auth.FailureStore. INCR and PEXPIRE run in one
// MULTI so the counter never outlives its window.
func (s *Store) RecordFailure(ctx context.Context, userID uuid.UUID, window time.Duration) (auth.FailureCount, error) {
	key := FailureKey(userID)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_RECORD_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return auth.FailureCount{Count: int(incr.Val()), Remaining: window}, nil
}

// ResetFailures implements auth.FailureStore.
func (s *Store) ResetFailures(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, FailureKey(userID)).Err(); err != nil {
		return oops.Code("LOGIN_FAILURES_RESET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// Ping checks the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}

var (
	_ auth.SessionStore = (*Store)(nil)
	_ auth.FailureStore = (*Store)(nil)
)
