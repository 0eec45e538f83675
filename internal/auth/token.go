// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Token lifetimes.
const (
	AccessTokenLifetime = 20 * time.Minute
	SessionLifetime     = 24 * time.Hour
)

// sessionTokenBytes is the amount of randomness in a session token.
const sessionTokenBytes = 48

// AccessClaims is the payload signed into an access token.
type AccessClaims struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayname"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	jwt.RegisteredClaims
}

// NewAccessClaims derives claims from a public user, expiring
// AccessTokenLifetime after now.
func NewAccessClaims(u *UserPublic, now time.Time) *AccessClaims {
	return &AccessClaims{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Email:       u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenLifetime)),
		},
	}
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	key []byte
	now func() time.Time
}

// NewTokenIssuer creates an issuer signing with key.
func NewTokenIssuer(key []byte) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, oops.Code("TOKEN_ISSUER_INVALID").Errorf("token signing secret is required")
	}
	return &TokenIssuer{key: append([]byte(nil), key...), now: time.Now}, nil
}

// IssueAccessToken signs claims for u valid from now.
func (i *TokenIssuer) IssueAccessToken(u *UserPublic, now time.Time) (string, error) {
	if u == nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Errorf("user is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, NewAccessClaims(u, now))
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("user_id", u.ID.String()).Wrap(err)
	}
	return signed, nil
}

// ParseAccessToken verifies the signature and expiry of an access token.
func (i *TokenIssuer) ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		code := "TOKEN_INVALID"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return nil, oops.Code(code).Wrap(err)
	}
	return claims, nil
}

// NewSessionToken returns 48 random bytes as URL-safe base64.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "generate random bytes").
			Wrap(err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
