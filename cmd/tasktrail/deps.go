// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/pflag"

	"github.com/tasktrail/tasktrail/internal/config"
	"github.com/tasktrail/tasktrail/internal/observability"
	"github.com/tasktrail/tasktrail/internal/sessionstore"
	"github.com/tasktrail/tasktrail/internal/store"
	"github.com/tasktrail/tasktrail/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the process configuration.
	// Default: config.Load
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// UserDBFactory connects to the user database.
	// Default: store.NewPool
	UserDBFactory func(ctx context.Context, url string, maxConns int32) (UserDB, error)

	// SessionStoreFactory opens the fast store.
	// Default: sessionstore.Open
	SessionStoreFactory func(ctx context.Context, url string, logger *slog.Logger) (sessionstore.Store, error)

	// ObservabilityServerFactory creates the metrics and probe server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, logger *slog.Logger, checks map[string]observability.Check) ObservabilityServer

	// WebServerFactory creates the public API server.
	// Default: web.NewServer
	WebServerFactory func(cfg web.Config) (WebServer, error)
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// ConfigLoader builds the process configuration.
	// Default: config.LoadDatabase
	ConfigLoader func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// MigratorFactory creates a migrator for the database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string, logger *slog.Logger) (Migrator, error)
}

// UserDB wraps the methods used from pgxpool.Pool.
type UserDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.UserDBFactory == nil {
		out.UserDBFactory = func(ctx context.Context, url string, maxConns int32) (UserDB, error) {
			pool, err := store.NewPool(ctx, url, maxConns)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.SessionStoreFactory == nil {
		out.SessionStoreFactory = sessionstore.Open
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, logger *slog.Logger, checks map[string]observability.Check) ObservabilityServer {
			return observability.NewServer(addr, logger, checks)
		}
	}
	if out.WebServerFactory == nil {
		out.WebServerFactory = func(cfg web.Config) (WebServer, error) {
			srv, err := web.NewServer(cfg)
			if err != nil {
				return nil, err
			}
			return srv, nil
		}
	}
	return &out
}

func (d *MigrateDeps) withDefaults() *MigrateDeps {
	out := MigrateDeps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.LoadDatabase
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string, logger *slog.Logger) (Migrator, error) {
			m, err := store.NewMigrator(url, logger)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	return &out
}
