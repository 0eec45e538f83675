// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktrail/tasktrail/internal/logging"
)

type observed struct {
	route  string
	status int
}

type fakeObserver struct {
	mu       sync.Mutex
	requests []observed
	limited  int
}

func (o *fakeObserver) ObserveRequest(route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, observed{route, status})
}

func (o *fakeObserver) RecordRateLimited() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limited++
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("a"), mark("b"), mark("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	t.Run("mints ULID when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(RequestIDHeader)
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("propagates client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		_, err := ulid.ParseStrict(rec.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})
}

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"kind":"InternalServerError","body":{"kind":"AuthError"}}}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Contains(t, logs.String(), "HTTP_HANDLER_PANIC")
	assert.Contains(t, logs.String(), "boom")
}

func TestRecover_RepanicsAbortHandler(t *testing.T) {
	h := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestAccessLog(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	obs := &fakeObserver{}

	mux := http.NewServeMux()
	mux.Handle("POST /login", okHandler())
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // test handler
		w.Write([]byte("{}"))
	})
	h := AccessLog(logger, obs)(mux)

	for _, path := range []string{"/login", "/register", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	assert.Equal(t, []observed{
		{"POST /login", http.StatusNoContent},
		{"POST /register", http.StatusOK},
		{unmatchedRoute, http.StatusNotFound},
	}, obs.requests)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 3)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "POST /login", entry["route"])
	assert.Equal(t, float64(http.StatusNoContent), entry["status"])
	assert.Equal(t, "192.0.2.1", entry["remote"])
}

func TestRateLimit(t *testing.T) {
	obs := &fakeObserver{}
	reg := NewLimiterRegistry(0.5, 2)
	h := RateLimit(reg, obs, nil)(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:5001").Code)

	limited := send("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", limited.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"error":{"kind":"RateLimited","body":{"message":"Too many requests, retry in 2s","retry_after":2}}}`,
		limited.Body.String())
	assert.Equal(t, 1, obs.limited)

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:5000").Code)
	assert.Equal(t, 2, reg.Len())
}

func TestAccessLog_RecordsRateLimitedRequests(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	obs := &fakeObserver{}

	mux := http.NewServeMux()
	mux.Handle("POST /login", okHandler())
	h := Chain(mux, AccessLog(logger, obs), RateLimit(NewLimiterRegistry(1, 1), obs, logger))

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, []observed{
		{"POST /login", http.StatusNoContent},
		{unmatchedRoute, http.StatusTooManyRequests},
	}, obs.requests)
	assert.Equal(t, 1, obs.limited)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, float64(http.StatusTooManyRequests), entry["status"])
}

func TestLimiterRegistry_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	reg := NewLimiterRegistry(1, 1)
	reg.now = func() time.Time { return now }

	first := reg.Get("a")
	reg.Get("b")
	assert.Same(t, first, reg.Get("a"))
	assert.Equal(t, 2, reg.Len())

	now = now.Add(DefaultLimiterIdle + time.Second)
	reg.Get("c")
	assert.Equal(t, 1, reg.Len())
	assert.NotSame(t, first, reg.Get("a"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}
