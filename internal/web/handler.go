// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tasktrail/tasktrail/internal/auth"
	"github.com/tasktrail/tasktrail/pkg/errutil"
)

// Cookie names set by a successful login.
const (
	RefreshCookie = "refresh_token"
	AccessCookie  = "access_token"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrMalformedBody is returned for bodies that are not a JSON object of
// the expected shape.
var ErrMalformedBody = &auth.ValidationError{
	Field:   "body",
	Message: "request body is invalid",
}

// Authenticator is the part of auth.Service the handlers call.
type Authenticator interface {
	Register(ctx context.Context, creds auth.UserCredentials) (*auth.UserPublic, error)
	Login(ctx context.Context, creds auth.LoginCredentials, userAgent string) (*auth.LoginResult, error)
}

// Handler serves the authentication routes.
type Handler struct {
	auth         Authenticator
	logger       *slog.Logger
	secureCookie bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSecureCookies marks issued cookies Secure.
func WithSecureCookies(secure bool) HandlerOption {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// WithHandlerLogger sets the logger for encoding failures.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(a Authenticator, opts ...HandlerOption) *Handler {
	h := &Handler{auth: a, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the handler's endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /login", h.login)
	return mux
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var creds auth.UserCredentials
	if !h.decode(w, r, &creds) {
		return
	}
	user, err := h.auth.Register(r.Context(), creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.LoginCredentials
	if !h.decode(w, r, &creds) {
		return
	}
	res, err := h.auth.Login(r.Context(), creds, r.UserAgent())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookie(RefreshCookie, res.Session.Token, auth.SessionLifetime))
	http.SetCookie(w, h.cookie(AccessCookie, res.AccessToken, auth.AccessTokenLifetime))
	writeJSON(w, r, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) cookie(name, value string, lifetime time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, ErrMalformedBody)
		return false
	}
	return true
}

// StatusFor maps a client-facing error to its HTTP status.
func StatusFor(err auth.Error) int {
	var a *auth.AuthError
	switch {
	case errors.As(err, new(*auth.ValidationError)):
		return http.StatusBadRequest
	case errors.As(err, &a) && a.Kind == auth.AuthUsernameNotFound:
		return http.StatusNotFound
	case errors.As(err, &a) && a.Kind == auth.AuthIncorrectPassword:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := auth.AsError(err, auth.InternalAuth)
	env, encErr := auth.NewEnvelope(e)
	if encErr != nil {
		errutil.LogError(r.Context(), h.logger, "error envelope encoding failed", encErr)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, h.logger, StatusFor(e), env)
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugContext(r.Context(), "response write failed", "error", err)
	}
}
