// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter
	AuthAttemptsTotal   *prometheus.CounterVec
	PasswordHashSeconds *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktrail_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasktrail_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tasktrail_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter",
			},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasktrail_auth_attempts_total",
				Help: "Register and login attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		PasswordHashSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasktrail_password_hash_seconds",
				Help:    "Time spent computing password hashes",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RateLimitedTotal,
		m.AuthAttemptsTotal,
		m.PasswordHashSeconds,
	)
	return m
}

// RecordAttempt implements auth.AttemptRecorder.
func (m *Metrics) RecordAttempt(operation, outcome string) {
	m.AuthAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveHash is an auth.HashObserver.
func (m *Metrics) ObserveHash(operation string, seconds float64) {
	m.PasswordHashSeconds.WithLabelValues(operation).Observe(seconds)
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordRateLimited counts one rejected request.
func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}
