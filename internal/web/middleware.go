// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/tasktrail/tasktrail/internal/auth"
	"github.com/tasktrail/tasktrail/internal/logging"
	"github.com/tasktrail/tasktrail/pkg/errutil"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// unmatchedRoute labels requests no route accepted.
const unmatchedRoute = "unmatched"

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares so that the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestObserver receives per-request measurements.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
	RecordRateLimited()
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int, time.Duration) {}
func (nopObserver) RecordRateLimited()                         {}

// RequestID propagates X-Request-ID, minting a ULID when the client sent
// none, and attaches it to the request context for logging.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = ulid.Make().String()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
		})
	}
}

// Recover turns a handler panic into a 500 error envelope.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := oops.Code("HTTP_HANDLER_PANIC").
					With("path", r.URL.Path).
					Errorf("panic: %v", rec)
				errutil.LogError(r.Context(), logger, "handler panicked", err)

				env, encErr := auth.NewEnvelope(auth.NewInternalError(auth.InternalAuth, err))
				if encErr != nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				writeJSON(w, r, logger, http.StatusInternalServerError, env)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// AccessLog logs each request and reports it to obs. Only middlewares that
// pass the request through unchanged may sit between it and the ServeMux,
// otherwise the matched pattern is not visible after dispatch.
func AccessLog(logger *slog.Logger, obs RequestObserver) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			elapsed := time.Since(start)
			obs.ObserveRequest(route, status, elapsed)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"remote", ClientIP(r),
			)
		})
	}
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimiterRegistry hands out one token bucket per client key. Buckets idle
// for longer than the idle window are dropped on the next sweep.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// DefaultLimiterIdle is how long an unused client bucket is kept.
const DefaultLimiterIdle = 10 * time.Minute

// NewLimiterRegistry creates a registry allowing rps requests per second
// with the given burst per client.
func NewLimiterRegistry(rps float64, burst int) *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     DefaultLimiterIdle,
		now:      time.Now,
	}
}

// Get returns the limiter for key, creating it on first use.
func (reg *LimiterRegistry) Get(key string) *rate.Limiter {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := reg.now()
	if now.Sub(reg.lastGC) >= reg.idle {
		reg.sweep(now)
	}

	cl, ok := reg.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(reg.rps, reg.burst)}
		reg.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Len returns the number of tracked clients.
func (reg *LimiterRegistry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.limiters)
}

func (reg *LimiterRegistry) sweep(now time.Time) {
	for key, cl := range reg.limiters {
		if now.Sub(cl.lastSeen) >= reg.idle {
			delete(reg.limiters, key)
		}
	}
	reg.lastGC = now
}

// CategoryRateLimited is the envelope kind of a 429 response. It is a
// transport rejection outside the auth error union.
const CategoryRateLimited auth.Category = "RateLimited"

// RateLimitedBody is the envelope body of a 429 response.
type RateLimitedBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit rejects requests from clients that exhausted their bucket
// with a 429 envelope and a Retry-After hint.
func RateLimit(reg *LimiterRegistry, obs RequestObserver, logger *slog.Logger) Middleware {
	if obs == nil {
		obs = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := reg.Get(ClientIP(r))
			if !limiter.Allow() {
				obs.RecordRateLimited()
				retry := 1
				if reg.rps > 0 {
					retry = max(1, int(1/float64(reg.rps)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeRateLimited(w, r, logger, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, logger *slog.Logger, retry int) {
	raw, err := json.Marshal(RateLimitedBody{
		Message:    fmt.Sprintf("Too many requests, retry in %ds", retry),
		RetryAfter: retry,
	})
	if err != nil {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	env := auth.Envelope{Error: auth.EnvelopeBody{Kind: CategoryRateLimited, Body: raw}}
	writeJSON(w, r, logger, http.StatusTooManyRequests, env)
}
