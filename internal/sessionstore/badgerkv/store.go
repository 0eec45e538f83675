// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package badgerkv stores session lists in an embedded Badger database.
//
// Each user's list is one JSON value. Append reads and rewrites it inside a
// transaction; Badger rejects the commit with ErrConflict when another
// transaction changed the key first, and the append is retried. Login
// failure counters are stored as decimal values under a TTL.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/tasktrail/tasktrail/internal/auth"
)

// Key prefixes.
const (
	KeyPrefix        = "sessions:"
	FailureKeyPrefix = "login_failures:"
)

const (
	conflictRetries    = 64
	conflictBackoff    = time.Millisecond
	conflictBackoffCap = 20 * time.Millisecond
)

// Store is an auth.SessionStore backed by Badger.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a database in dir. An empty dir keeps everything
// in memory.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, oops.Code("SESSION_STORE_CONNECT_FAILED").With("dir", dir).Wrap(err)
	}
	return &Store{db: db}, nil
}

// Key returns the Badger key holding userID's sessions.
func Key(userID uuid.UUID) []byte {
	return []byte(KeyPrefix + userID.String())
}

// Append implements auth.SessionStore.
func (s *Store) Append(ctx context.Context, userID uuid.UUID, session auth.Session) error {
	if err := auth.ValidateSession(session); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		list, err := readList(txn, userID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(append(list, session))
		if err != nil {
			return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
		}
		return txn.Set(Key(userID), data)
	})
	if err != nil {
		return oops.Code("SESSION_APPEND_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// Get implements auth.SessionStore.
func (s *Store) Get(_ context.Context, userID uuid.UUID) (auth.SessionList, error) {
	var list auth.SessionList
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		list, err = readList(txn, userID)
		return err
	})
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return list, nil
}

// update runs fn in a read-write transaction, retrying on ErrConflict.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	backoff := retry.NewExponential(conflictBackoff)
	backoff = retry.WithJitter(conflictBackoff, backoff)
	backoff = retry.WithCappedDuration(conflictBackoffCap, backoff)
	backoff = retry.WithMaxRetries(conflictRetries, backoff)

	return retry.Do(ctx, backoff, func(context.Context) error {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// FailureKey returns the Badger key counting userID's failed logins.
func FailureKey(userID uuid.UUID) []byte {
	return []byte(FailureKeyPrefix + userID.String())
}

// Failures implements auth.FailureStore.
func (s *Store) Failures(_ context.Context, userID uuid.UUID) (auth.FailureCount, error) {
	var f auth.FailureCount
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		f, err = readFailures(txn, userID)
		return err
	})
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_GET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return f, nil
}

// RecordFailure implements auth.FailureStore.
func (s *Store) RecordFailure(ctx context.Context, userID uuid.UUID, window time.Duration) (auth.FailureCount, error) {
	var f auth.FailureCount
	err := s.update(ctx, func(txn *badger.Txn) error {
		prev, err := readFailures(txn, userID)
		if err != nil {
			return err
		}
		f = auth.FailureCount{Count: prev.Count + 1, Remaining: window}
		entry := badger.NewEntry(FailureKey(userID), []byte(strconv.Itoa(f.Count))).WithTTL(window)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_RECORD_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return f, nil
}

// ResetFailures implements auth.FailureStore.
func (s *Store) ResetFailures(ctx context.Context, userID uuid.UUID) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(FailureKey(userID))
	})
	if err != nil {
		return oops.Code("LOGIN_FAILURES_RESET_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

func readFailures(txn *badger.Txn, userID uuid.UUID) (auth.FailureCount, error) {
	item, err := txn.Get(FailureKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return auth.FailureCount{}, nil
	}
	if err != nil {
		return auth.FailureCount{}, err
	}
	var count int
	err = item.Value(func(val []byte) error {
		count, err = strconv.Atoi(string(val))
		return err
	})
	if err != nil {
		return auth.FailureCount{}, oops.Code("LOGIN_FAILURES_DECODE_FAILED").Wrap(err)
	}
	var remaining time.Duration
	if exp := item.ExpiresAt(); exp > 0 {
		remaining = max(0, time.Until(time.Unix(int64(exp), 0)))
	}
	return auth.FailureCount{Count: count, Remaining: remaining}, nil
}

func readList(txn *badger.Txn, userID uuid.UUID) (auth.SessionList, error) {
	item, err := txn.Get(Key(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return auth.SessionList{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list auth.SessionList
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &list)
	})
	if err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	if list == nil {
		list = auth.SessionList{}
	}
	return list, nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return oops.Code("SESSION_STORE_CLOSED").Errorf("badger database is closed")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

var (
	_ auth.SessionStore = (*Store)(nil)
	_ auth.FailureStore = (*Store)(nil)
)
