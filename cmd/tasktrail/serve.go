// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tasktrail/tasktrail/internal/auth"
	"github.com/tasktrail/tasktrail/internal/auth/postgres"
	"github.com/tasktrail/tasktrail/internal/config"
	"github.com/tasktrail/tasktrail/internal/logging"
	"github.com/tasktrail/tasktrail/internal/observability"
	"github.com/tasktrail/tasktrail/internal/sessionstore"
	"github.com/tasktrail/tasktrail/internal/web"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the registration and login API together with the
metrics and health probe listener.

Secrets are read from the config file or from TASKTRAIL_SECRETS_PASSWORD
and TASKTRAIL_SECRETS_SIGNING; they have no flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	def := config.Default()
	flags := cmd.Flags()
	flags.String("http-addr", def.HTTP.Addr, "public API listen address")
	flags.String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", def.Log.Format, "log format (json or text)")
	flags.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.Int32("database-maxconns", def.Database.MaxConns, "maximum database connections")
	flags.String("faststore-url", "", "session store URL (redis://, rediss://, badger://)")
	flags.Int("hashing-workers", def.Hashing.Workers, "concurrent password hash computations (0 = one per CPU)")
	flags.Float64("ratelimit-rps", def.RateLimit.RPS, "requests per second per client IP (0 = unlimited)")
	flags.Int("ratelimit-burst", def.RateLimit.Burst, "request burst per client IP")
	flags.Bool("cookies-secure", def.Cookies.Secure, "mark issued cookies Secure")

	return cmd
}

// runServeWithDeps starts the API with injectable dependencies and blocks
// until ctx is cancelled, a signal arrives or a server fails.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := deps.ConfigLoader(configPath(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Service: "tasktrail",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("starting tasktrail",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	db, err := deps.UserDBFactory(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	sessions, err := deps.SessionStoreFactory(ctx, cfg.FastStore.URL, logger)
	if err != nil {
		return oops.Code("SESSION_STORE_CONNECT_FAILED").With("operation", "open fast store").Wrap(err)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			logger.Warn("error closing session store", "error", closeErr)
		}
	}()
	logger.Info("connected to session store")

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, logger, map[string]observability.Check{
			"database":  db.Ping,
			"faststore": sessions.Ping,
		})
		metrics = obsServer.Metrics()
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	svc, err := newAuthService(cfg, db, sessions, logger, metrics)
	if err != nil {
		stopServers(logger, nil, obsServer)
		return err
	}

	webCfg := web.Config{
		Addr:          cfg.HTTP.Addr,
		Authenticator: svc,
		Logger:        logger,
		SecureCookies: cfg.Cookies.Secure,
	}
	if metrics != nil {
		webCfg.Observer = metrics
	}
	if cfg.RateLimit.RPS > 0 {
		webCfg.Limiter = web.NewLimiterRegistry(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	webServer, err := deps.WebServerFactory(webCfg)
	if err != nil {
		stopServers(logger, nil, obsServer)
		return oops.Code("SERVER_START_FAILED").With("server", "web").Wrap(err)
	}
	webErrCh, err := webServer.Start()
	if err != nil {
		stopServers(logger, nil, obsServer)
		return oops.Code("SERVER_START_FAILED").With("server", "web").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrCh, "web")

	cmd.Println("TaskTrail started")
	logger.Info("tasktrail ready", "http_addr", webServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down...")
	stopServers(logger, webServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

func newAuthService(
	cfg *config.Config,
	db UserDB,
	sessions sessionstore.Store,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*auth.Service, error) {
	var hasherOpts []auth.HasherOption
	var svcOpts []auth.ServiceOption
	svcOpts = append(svcOpts, auth.WithLogger(logger), auth.WithFailureStore(sessions))
	if metrics != nil {
		hasherOpts = append(hasherOpts, auth.WithHashObserver(metrics.ObserveHash))
		svcOpts = append(svcOpts, auth.WithAttemptRecorder(metrics))
	}

	hasher, err := auth.NewArgon2idHasher([]byte(cfg.Secrets.Password), cfg.Hashing.Workers, hasherOpts...)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewTokenIssuer([]byte(cfg.Secrets.Signing))
	if err != nil {
		return nil, err
	}
	return auth.NewService(postgres.NewUserRepository(db), sessions, hasher, issuer, svcOpts...)
}

// stopServers drains the web server before the observability server so
// probes stay up while requests finish.
func stopServers(logger *slog.Logger, webServer WebServer, obsServer ObservabilityServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if webServer != nil {
		if err := webServer.Stop(ctx); err != nil {
			logger.Warn("error stopping web server", "error", err)
		}
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when errCh delivers a server error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
