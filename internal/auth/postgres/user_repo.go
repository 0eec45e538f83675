// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tasktrail/tasktrail/internal/auth"
)

// querier is the subset of pgxpool.Pool the repository needs. pgxmock
// pools satisfy it in unit tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool querier) *UserRepository {
	return &UserRepository{pool: pool}
}

// Insert stores a new user and returns the public columns written.
func (r *UserRepository) Insert(ctx context.Context, user *auth.User) (*auth.UserPublic, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, displayname, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, displayname, username, email, created_at
	`,
		user.ID.String(),
		user.DisplayName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.Unix(),
	)

	var (
		idStr string
		pub   auth.UserPublic
	)
	err := row.Scan(&idStr, &pub.DisplayName, &pub.Username, &pub.Email, &pub.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("username", user.Username).
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		}
		return nil, oops.Code("USER_INSERT_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}

	pub.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INSERT_FAILED").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	return &pub, nil
}

// FindByUsername retrieves a user by exact username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, displayname, username, email, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").
			With("operation", "find user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		user      auth.User
		createdAt int64
	)
	if err := row.Scan(
		&idStr,
		&user.DisplayName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&createdAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	user.ID = id
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
