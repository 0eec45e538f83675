// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package mocks provides testify mocks for the auth collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tasktrail/tasktrail/internal/auth"
)

// cleanupT is the part of testing.TB the constructors need.
type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations at test cleanup.
func NewMockUserRepository(t cleanupT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Insert implements auth.UserRepository.
func (m *MockUserRepository) Insert(ctx context.Context, user *auth.User) (*auth.UserPublic, error) {
	args := m.Called(ctx, user)
	switch v := args.Get(0).(type) {
	case func(context.Context, *auth.User) *auth.UserPublic:
		return v(ctx, user), args.Error(1)
	case *auth.UserPublic:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByUsername implements auth.UserRepository.
func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

// MockSessionStore is a mock auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock that asserts its expectations at test cleanup.
func NewMockSessionStore(t cleanupT) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Append implements auth.SessionStore.
func (m *MockSessionStore) Append(ctx context.Context, userID uuid.UUID, session auth.Session) error {
	args := m.Called(ctx, userID, session)
	return args.Error(0)
}

// Get implements auth.SessionStore.
func (m *MockSessionStore) Get(ctx context.Context, userID uuid.UUID) (auth.SessionList, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(auth.SessionList), args.Error(1)
}

// MockPasswordHasher is a mock auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations at test cleanup.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash implements auth.PasswordHasher.
func (m *MockPasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	args := m.Called(ctx, password)
	return args.String(0), args.Error(1)
}

// Verify implements auth.PasswordHasher.
func (m *MockPasswordHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	args := m.Called(ctx, password, encoded)
	return args.Bool(0), args.Error(1)
}

var (
	_ auth.UserRepository = (*MockUserRepository)(nil)
	_ auth.SessionStore   = (*MockSessionStore)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
)

// MockFailureStore is a mock auth.FailureStore.
type MockFailureStore struct {
	mock.Mock
}

// NewMockFailureStore creates a mock that asserts its expectations at test cleanup.
func NewMockFailureStore(t cleanupT) *MockFailureStore {
	m := &MockFailureStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Failures implements auth.FailureStore.
func (m *MockFailureStore) Failures(ctx context.Context, userID uuid.UUID) (auth.FailureCount, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(auth.FailureCount), args.Error(1)
}

// RecordFailure implements auth.FailureStore.
func (m *MockFailureStore) RecordFailure(ctx context.Context, userID uuid.UUID, window time.Duration) (auth.FailureCount, error) {
	args := m.Called(ctx, userID, window)
	return args.Get(0).(auth.FailureCount), args.Error(1)
}

// ResetFailures implements auth.FailureStore.
func (m *MockFailureStore) ResetFailures(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
