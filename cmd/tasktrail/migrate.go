// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tasktrail/tasktrail/internal/logging"
)

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the user database schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
Running migrate without a subcommand applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateUp(cmd, deps)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrateUp(cmd, deps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back -N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("steps", args[0]).Wrapf(err, "steps must be an integer")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Moved %d step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).Wrapf(err, "version must be an integer")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				if st.Version == 0 {
					cmd.Println("Version: none")
				} else {
					cmd.Printf("Version: %d (%s)\n", st.Version, st.Name)
				}
				cmd.Printf("Dirty: %t\n", st.Dirty)
				if len(st.Pending) == 0 {
					cmd.Println("Pending: none")
					return nil
				}
				pending := make([]string, len(st.Pending))
				for i, v := range st.Pending {
					pending[i] = fmt.Sprint(v)
				}
				cmd.Printf("Pending: %s\n", strings.Join(pending, ", "))
				return nil
			})
		},
	})

	return cmd
}

func migrateUp(cmd *cobra.Command, deps *MigrateDeps) error {
	return withMigrator(cmd, deps, func(m Migrator) error {
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations applied")
		return nil
	})
}

func withMigrator(cmd *cobra.Command, deps *MigrateDeps, fn func(Migrator) error) error {
	deps = deps.withDefaults()

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

	m, err := deps.MigratorFactory(cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := fn(m); err != nil {
		return oops.Code("MIGRATION_FAILED").With("command", cmd.Name()).Wrap(err)
	}
	return nil
}

