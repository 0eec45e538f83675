// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package sessionstore opens the fast store that holds login sessions and
// login failure counters.
//
// Supported URLs:
//   - redis://[user:pass@]host:port/db or rediss://... for Redis
//   - badger:///path/to/dir for an on-disk Badger database
//   - badger://memory for an in-memory Badger database
//   - badger://data for a Badger database under the XDG data directory
package sessionstore

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/tasktrail/tasktrail/internal/auth"
	"github.com/tasktrail/tasktrail/internal/sessionstore/badgerkv"
	"github.com/tasktrail/tasktrail/internal/sessionstore/rediskv"
	"github.com/tasktrail/tasktrail/internal/xdg"
)

// Store is a session and failure store the process owns.
type Store interface {
	auth.SessionStore
	auth.FailureStore
	Ping(ctx context.Context) error
	Close() error
}

// Open opens the store named by rawURL.
func Open(ctx context.Context, rawURL string, logger *slog.Logger) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, oops.Code("SESSION_STORE_CONFIG_INVALID").Wrapf(err, "parse fast store url")
	}

	switch u.Scheme {
	case "redis", "rediss":
		store, err := rediskv.Open(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "badger":
		dir, err := badgerDir(u)
		if err != nil {
			return nil, err
		}
		store, err := badgerkv.Open(dir, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, oops.Code("SESSION_STORE_CONFIG_INVALID").
			With("scheme", u.Scheme).
			Errorf("unsupported fast store scheme %q", u.Scheme)
	}
}

func badgerDir(u *url.URL) (string, error) {
	if strings.Trim(u.Path, "/") != "" || (u.Host != "memory" && u.Host != "data") {
		return u.Host + u.Path, nil
	}
	if u.Host == "memory" {
		return "", nil
	}
	dir, err := xdg.SessionsDir()
	if err != nil {
		return "", err
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}
