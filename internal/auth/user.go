// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// UserCredentials is the raw registration payload.
type UserCredentials struct {
	DisplayName string `json:"displayname"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// LoginCredentials is the raw login payload.
type LoginCredentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is a persisted account. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID
	DisplayName  string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserPublic is the only user representation sent to clients or signed
// into tokens.
type UserPublic struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayname"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	CreatedAt   int64     `json:"created_at"`
}

// NewUser builds a User from validated credentials and an already computed
// password hash.
func NewUser(c UserCredentials, passwordHash string, now time.Time) (*User, error) {
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID").Errorf("password hash is required")
	}
	return &User{
		ID:           uuid.New(),
		DisplayName:  c.DisplayName,
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now.UTC().Truncate(time.Second),
	}, nil
}

// Public strips the password hash.
func (u *User) Public() *UserPublic {
	return &UserPublic{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt.Unix(),
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Insert stores a new user and returns its public form.
	Insert(ctx context.Context, user *User) (*UserPublic, error)

	// FindByUsername returns the user with the given username, or an error
	// wrapping ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
}
