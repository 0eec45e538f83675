// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Server timeouts.
const (
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 2 * time.Minute
)

// Config assembles the public API server.
type Config struct {
	Addr          string
	Authenticator Authenticator
	Logger        *slog.Logger
	Observer      RequestObserver
	Limiter       *LimiterRegistry
	SecureCookies bool
}

// Server serves the public API.
type Server struct {
	addr       string
	handler    http.Handler
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer builds the middleware chain around the auth routes. A nil
// Limiter disables rate limiting.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Authenticator == nil {
		return nil, oops.Code("SERVER_CONFIG_INVALID").Errorf("authenticator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := NewHandler(cfg.Authenticator,
		WithSecureCookies(cfg.SecureCookies),
		WithHandlerLogger(logger),
	)

	mws := []Middleware{RequestID(), Recover(logger), AccessLog(logger, cfg.Observer)}
	if cfg.Limiter != nil {
		mws = append(mws, RateLimit(cfg.Limiter, cfg.Observer, logger))
	}

	return &Server{
		addr:    cfg.Addr,
		handler: Chain(h.Routes(), mws...),
		logger:  logger,
	}, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. The returned channel receives a serve error, if
// any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("SERVER_ALREADY_RUNNING").Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("SERVER_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("SERVER_SHUTDOWN_FAILED").With("server", "web").Wrap(err)
		}
	}
	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
