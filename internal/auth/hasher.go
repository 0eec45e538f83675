// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an encoded hash of the password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the encoded hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// HashObserver receives the wall time of each hash computation.
type HashObserver func(operation string, seconds float64)

// Argon2idHasher hashes passwords with argon2id under a random per-hash salt
// and a server-wide pepper. Computations are bounded by a weighted semaphore
// so hashing load does not scale with request concurrency.
type Argon2idHasher struct {
	pepper  []byte
	workers *semaphore.Weighted
	observe HashObserver
}

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithHashObserver reports hash durations to fn.
func WithHashObserver(fn HashObserver) HasherOption {
	return func(h *Argon2idHasher) {
		h.observe = fn
	}
}

// NewArgon2idHasher creates a hasher keyed by pepper. workers <= 0 uses
// runtime.NumCPU().
func NewArgon2idHasher(pepper []byte, workers int, opts ...HasherOption) (*Argon2idHasher, error) {
	if len(pepper) == 0 {
		return nil, oops.Code("AUTH_HASHER_INVALID").Errorf("password hashing secret is required")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	h := &Argon2idHasher{
		pepper:  append([]byte(nil), pepper...),
		workers: semaphore.NewWeighted(int64(workers)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Hash produces an argon2id PHC string of the peppered password.
func (h *Argon2idHasher) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	var key []byte
	err := h.run(ctx, "hash", func() {
		key = argon2.IDKey(h.peppered(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	})
	if err != nil {
		return "", err
	}

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks the password against an encoded hash produced by Hash.
func (h *Argon2idHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	p, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	var computed []byte
	err = h.run(ctx, "verify", func() {
		computed = argon2.IDKey(h.peppered(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	})
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

func (h *Argon2idHasher) run(ctx context.Context, operation string, fn func()) error {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return oops.Code("AUTH_HASH_CANCELLED").With("operation", operation).Wrap(err)
	}
	defer h.workers.Release(1)

	if h.observe == nil {
		fn()
		return nil
	}
	start := time.Now()
	fn()
	h.observe(operation, time.Since(start).Seconds())
	return nil
}

func (h *Argon2idHasher) peppered(password string) []byte {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// Bounds on parameters read back from stored hashes. Memory is in KiB.
const (
	maxStoredMemory = 1 << 20
	maxStoredTime   = 16
	minStoredSalt   = 8
)

type hashParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func decodeHash(encoded string) (*hashParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if iterations == 0 || iterations > maxStoredTime {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("time value %d out of range", iterations)
	}
	if memory < 8*threads || memory > maxStoredMemory {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("memory value %d out of range", memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(salt) < minStoredSalt || len(salt) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid salt length: %d", len(salt))
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &hashParams{
		memory:  memory,
		time:    iterations,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
