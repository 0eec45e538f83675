// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/tasktrail/tasktrail/pkg/errutil"
)

// Attempt outcomes reported to an AttemptRecorder.
const (
	OutcomeSuccess           = "success"
	OutcomeInvalid           = "invalid"
	OutcomeUsernameNotFound  = "username_not_found"
	OutcomeIncorrectPassword = "incorrect_password"
	OutcomeLockedOut         = "locked_out"
	OutcomeError             = "error"
)

// AttemptRecorder counts register and login attempts by outcome.
type AttemptRecorder interface {
	RecordAttempt(operation, outcome string)
}

// LoginResult is what a successful login hands back to the boundary.
type LoginResult struct {
	User        *UserPublic
	AccessToken string
	Session     Session
}

// Service implements registration and login.
type Service struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	issuer   *TokenIssuer
	logger   *slog.Logger
	recorder AttemptRecorder
	failures FailureStore
	sleep    func(context.Context, time.Duration) error
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for server-side failure detail.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAttemptRecorder reports attempt outcomes to r.
func WithAttemptRecorder(r AttemptRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithFailureStore enables login throttling: failed logins are counted per
// user, later attempts are delayed and the account locks at
// LockoutThreshold failures.
func WithFailureStore(store FailureStore) ServiceOption {
	return func(s *Service) {
		s.failures = store
	}
}

// WithSleep overrides how the service waits out a throttle delay.
func WithSleep(sleep func(context.Context, time.Duration) error) ServiceOption {
	return func(s *Service) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. All collaborators are required.
func NewService(
	users UserRepository,
	sessions SessionStore,
	hasher PasswordHasher,
	issuer *TokenIssuer,
	opts ...ServiceOption,
) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token issuer is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		issuer:   issuer,
		logger:   slog.Default(),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates the credentials, hashes the password and stores the
// new user.
func (s *Service) Register(ctx context.Context, creds UserCredentials) (*UserPublic, error) {
	if verr := ValidateRegistration(creds); verr != nil {
		s.record("register", OutcomeInvalid)
		return nil, verr
	}

	hash, err := s.hasher.Hash(ctx, creds.Password)
	if err != nil {
		return nil, s.internal(ctx, "register", InternalAuth, "password hashing failed",
			oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err))
	}

	user, err := NewUser(creds, hash, s.now())
	if err != nil {
		return nil, s.internal(ctx, "register", InternalAuth, "user construction failed", err)
	}

	public, err := s.users.Insert(ctx, user)
	if err != nil {
		return nil, s.internal(ctx, "register", InternalDB, "user insert failed",
			oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "insert user").
				With("username", creds.Username).
				Wrap(err))
	}

	s.record("register", OutcomeSuccess)
	s.logger.InfoContext(ctx, "user registered", "user_id", public.ID.String())
	return public, nil
}

// Login checks the credentials, mints an access token and records a new
// session for the device described by userAgent.
func (s *Service) Login(ctx context.Context, creds LoginCredentials, userAgent string) (*LoginResult, error) {
	if verr := ValidateLogin(creds); verr != nil {
		s.record("login", OutcomeInvalid)
		return nil, verr
	}

	user, err := s.users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record("login", OutcomeUsernameNotFound)
			return nil, ErrUsernameNotFound
		}
		return nil, s.internal(ctx, "login", InternalDB, "user lookup failed",
			oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find user by username").
				With("username", creds.Username).
				Wrap(err))
	}

	failures, err := s.checkFailures(ctx, user.ID)
	if err != nil {
		return nil, s.internal(ctx, "login", InternalDB, "login failure lookup failed",
			oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get login failures").
				With("user_id", user.ID.String()).
				Wrap(err))
	}
	throttle := CheckFailures(failures)
	if throttle.IsLockedOut {
		s.record("login", OutcomeLockedOut)
		s.logger.WarnContext(ctx, "login rejected while locked out",
			"user_id", user.ID.String(),
			"lockout_remaining", throttle.LockoutRemaining.String(),
		)
		return nil, ErrIncorrectPassword
	}
	if throttle.Delay > 0 {
		if err := s.sleep(ctx, throttle.Delay); err != nil {
			return nil, s.internal(ctx, "login", InternalAuth, "login delay interrupted",
				oops.Code("AUTH_LOGIN_FAILED").
					With("operation", "wait out failure delay").
					With("delay", throttle.Delay.String()).
					Wrap(err))
		}
	}

	ok, err := s.hasher.Verify(ctx, creds.Password, user.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "login", InternalAuth, "password verification failed",
			oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "verify password").
				With("user_id", user.ID.String()).
				Wrap(err))
	}
	if !ok {
		s.recordFailure(ctx, user.ID)
		s.record("login", OutcomeIncorrectPassword)
		return nil, ErrIncorrectPassword
	}
	if failures.Count > 0 {
		s.resetFailures(ctx, user.ID)
	}

	now := s.now()
	public := user.Public()

	access, err := s.issuer.IssueAccessToken(public, now)
	if err != nil {
		return nil, s.internal(ctx, "login", InternalAuth, "access token signing failed", err)
	}

	session, err := NewSession(userAgent, now)
	if err != nil {
		return nil, s.internal(ctx, "login", InternalAuth, "session creation failed", err)
	}

	if err := s.sessions.Append(ctx, user.ID, session); err != nil {
		return nil, s.internal(ctx, "login", InternalDB, "session append failed",
			oops.Code("AUTH_SESSION_CREATE_FAILED").
				With("operation", "append session").
				With("user_id", user.ID.String()).
				Wrap(err))
	}

	s.record("login", OutcomeSuccess)
	s.logger.InfoContext(ctx, "user logged in",
		"user_id", public.ID.String(),
		"os", session.OS,
		"browser", session.Browser,
	)

	return &LoginResult{User: public, AccessToken: access, Session: session}, nil
}

// Sessions returns the stored sessions for a user that have not expired.
func (s *Service) Sessions(ctx context.Context, user *UserPublic) (SessionList, error) {
	if user == nil {
		return nil, NewInternalError(InternalAuth,
			oops.Code("AUTH_SESSIONS_FAILED").Errorf("user is required"))
	}
	list, err := s.sessions.Get(ctx, user.ID)
	if err != nil {
		errutil.LogError(ctx, s.logger, "session lookup failed", err, "user_id", user.ID.String())
		return nil, NewInternalError(InternalDB, err)
	}
	return list.Active(s.now()), nil
}

func (s *Service) checkFailures(ctx context.Context, userID uuid.UUID) (FailureCount, error) {
	if s.failures == nil {
		return FailureCount{}, nil
	}
	return s.failures.Failures(ctx, userID)
}

// recordFailure is best effort: a store fault must not turn a wrong
// password into an internal error.
func (s *Service) recordFailure(ctx context.Context, userID uuid.UUID) {
	if s.failures == nil {
		return
	}
	f, err := s.failures.RecordFailure(ctx, userID, LockoutDuration)
	if err != nil {
		errutil.LogError(ctx, s.logger, "login failure record failed",
			oops.Code("AUTH_FAILURE_RECORD_FAILED").With("user_id", userID.String()).Wrap(err))
		return
	}
	if f.Count == LockoutThreshold {
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			"user_id", userID.String(),
			"failures", f.Count,
			"lockout", LockoutDuration.String(),
		)
	}
}

func (s *Service) resetFailures(ctx context.Context, userID uuid.UUID) {
	if err := s.failures.ResetFailures(ctx, userID); err != nil {
		errutil.LogError(ctx, s.logger, "login failure reset failed",
			oops.Code("AUTH_FAILURE_RESET_FAILED").With("user_id", userID.String()).Wrap(err))
	}
}

func (s *Service) internal(ctx context.Context, operation string, kind InternalKind, msg string, err error) *InternalError {
	s.record(operation, OutcomeError)
	errutil.LogError(ctx, s.logger, msg, err, "operation", operation)
	return NewInternalError(kind, err)
}

func (s *Service) record(operation, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAttempt(operation, outcome)
	}
}
