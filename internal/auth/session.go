// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Session is one login on one device. Its expiry is fixed at creation.
type Session struct {
	Token   string `json:"token"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Expires int64  `json:"expires"`
}

// NewSession creates a session with a fresh random token for the device
// described by userAgent, expiring SessionLifetime after now.
func NewSession(userAgent string, now time.Time) (Session, error) {
	token, err := NewSessionToken()
	if err != nil {
		return Session{}, err
	}
	device := ParseUserAgent(userAgent)
	return Session{
		Token:   token,
		OS:      device.OS,
		Browser: device.Browser,
		Expires: now.Add(SessionLifetime).Unix(),
	}, nil
}

// Expired reports whether the session has expired at now.
func (s Session) Expired(now time.Time) bool {
	return now.Unix() >= s.Expires
}

// SessionList is a user's sessions in insertion order.
type SessionList []Session

// Active returns the sessions that have not expired at now.
func (l SessionList) Active(now time.Time) SessionList {
	out := make(SessionList, 0, len(l))
	for _, s := range l {
		if !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the session with the given token.
func (l SessionList) Find(token string) (Session, bool) {
	for _, s := range l {
		if s.Token == token {
			return s, true
		}
	}
	return Session{}, false
}

// SessionStore persists each user's sessions. Implementations must make
// Append atomic with respect to concurrent Appends for the same user.
// Expired sessions are kept; readers filter them with SessionList.Active.
type SessionStore interface {
	// Append adds a session to the user's list.
	Append(ctx context.Context, userID uuid.UUID, session Session) error

	// Get returns the user's sessions, or an empty list if there are none.
	Get(ctx context.Context, userID uuid.UUID) (SessionList, error)
}

// ValidateSession checks a session before it is stored.
func ValidateSession(s Session) error {
	if s.Token == "" {
		return oops.Code("SESSION_INVALID").Errorf("session token is required")
	}
	if s.Expires <= 0 {
		return oops.Code("SESSION_INVALID").With("token_len", len(s.Token)).Errorf("session expiry is required")
	}
	return nil
}
