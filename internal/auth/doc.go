// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package auth provides registration, login and session tracking for
// TaskTrail.
//
// # Domain Types
//
// UserCredentials and LoginCredentials are raw client payloads checked by
// ValidateRegistration and ValidateLogin. Users are built with NewUser and
// exposed to clients only as UserPublic. Sessions are built with NewSession,
// which never fails on an unparsable user agent.
//
// # Errors
//
// Every failure that reaches a client is one of *ValidationError,
// *AuthError or *InternalError, all satisfying Error. NewEnvelope renders
// the {"error":{"kind":...,"body":...}} wire form. InternalError keeps its
// cause for logs only.
//
// # Services
//
// Service coordinates the flows:
//   - Register - validate, hash, insert user
//   - Login - validate, look up, verify, issue access token, append session
//
// Collaborators (UserRepository, SessionStore, PasswordHasher) are
// interfaces; postgres and fast-store implementations live in sibling
// packages.
package auth
