// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/tasktrail/tasktrail/internal/xdg"
)

// NewRootCmd creates the root command for the TaskTrail CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasktrail",
		Short: "TaskTrail - account registration and login service",
		Long: `TaskTrail serves account registration and login over HTTP,
storing users in PostgreSQL and login sessions in a fast store.

Configuration comes from an optional YAML file (--config, default
$XDG_CONFIG_HOME/tasktrail/config.yaml), TASKTRAIL_*
environment variables and command-line flags, in that order of precedence.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// configPath returns --config, or the XDG default config file when the
// flag is unset and that file exists.
func configPath(cmd *cobra.Command) string {
	if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
		return path
	}
	return xdg.DefaultConfigFile()
}
