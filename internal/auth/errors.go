// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// Category is the discriminant of the client-facing error union.
type Category string

// Error categories as they appear in the wire envelope.
const (
	CategoryValidation Category = "ValidationError"
	CategoryAuth       Category = "AuthError"
	CategoryInternal   Category = "InternalServerError"
)

// Error is the closed set of errors that may cross the HTTP boundary.
// The only implementations are *ValidationError, *AuthError and *InternalError.
type Error interface {
	error
	Category() Category
	body() any
}

// ValidationError reports the first input rule a payload violated.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Category implements Error.
func (e *ValidationError) Category() Category { return CategoryValidation }

func (e *ValidationError) body() any { return e }

// AuthKind enumerates expected authentication failures.
type AuthKind string

// Authentication failure kinds.
const (
	AuthUsernameNotFound  AuthKind = "UsernameNotFound"
	AuthIncorrectPassword AuthKind = "IncorrectPassword"
)

// AuthError is an expected authentication failure.
type AuthError struct {
	Kind    AuthKind `json:"kind"`
	Message string   `json:"message"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s: %s", e.Kind, e.Message)
}

// Category implements Error.
func (e *AuthError) Category() Category { return CategoryAuth }

func (e *AuthError) body() any { return e }

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// Authentication failures returned by Service.Login.
var (
	ErrUsernameNotFound = &AuthError{
		Kind:    AuthUsernameNotFound,
		Message: "User with specified username not found",
	}
	ErrIncorrectPassword = &AuthError{
		Kind:    AuthIncorrectPassword,
		Message: "Password is incorrect",
	}
)

// InternalKind is the coarse classification of a server-side fault.
type InternalKind string

// Internal fault kinds.
const (
	InternalDB   InternalKind = "DBError"
	InternalAuth InternalKind = "AuthError"
)

// InternalError hides a server-side fault behind a coarse kind.
// The cause is kept for logging and never serialized.
type InternalError struct {
	Kind  InternalKind `json:"kind"`
	cause error
}

// NewInternalError wraps cause as an internal fault of the given kind.
func NewInternalError(kind InternalKind, cause error) *InternalError {
	return &InternalError{Kind: kind, cause: cause}
}

func (e *InternalError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("internal error: %s", e.Kind)
	}
	return fmt.Sprintf("internal error: %s: %v", e.Kind, e.cause)
}

// Category implements Error.
func (e *InternalError) Category() Category { return CategoryInternal }

type internalBody struct {
	Kind InternalKind `json:"kind"`
}

func (e *InternalError) body() any { return internalBody{Kind: e.Kind} }

// Unwrap returns the underlying cause.
func (e *InternalError) Unwrap() error { return e.cause }

// Is matches any InternalError of the same kind.
func (e *InternalError) Is(target error) bool {
	t, ok := target.(*InternalError)
	return ok && t.Kind == e.Kind
}

// Envelope is the wire form of an Error: {"error":{"kind":...,"body":...}}.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

// EnvelopeBody carries the category discriminant and its payload.
type EnvelopeBody struct {
	Kind Category        `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// NewEnvelope wraps err for serialization.
func NewEnvelope(err Error) (Envelope, error) {
	raw, marshalErr := json.Marshal(err.body())
	if marshalErr != nil {
		return Envelope{}, marshalErr
	}
	return Envelope{Error: EnvelopeBody{Kind: err.Category(), Body: raw}}, nil
}

// AsError extracts the client-facing error from err. Any error outside the
// union is reported as an InternalError of the given fallback kind.
func AsError(err error, fallback InternalKind) Error {
	var v *ValidationError
	if errors.As(err, &v) {
		return v
	}
	var a *AuthError
	if errors.As(err, &a) {
		return a
	}
	var i *InternalError
	if errors.As(err, &i) {
		return i
	}
	return NewInternalError(fallback, err)
}
