// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package xdg resolves XDG Base Directory paths for TaskTrail.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "tasktrail"

// ConfigFileName is the file DefaultConfigFile looks for.
const ConfigFileName = "config.yaml"

func base(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_HOME_UNSET").With("env", env).Errorf("neither %s nor HOME is set", env)
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/tasktrail, falling back to
// ~/.config/tasktrail.
func ConfigDir() (string, error) {
	return base("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/tasktrail, falling back to
// ~/.local/share/tasktrail.
func DataDir() (string, error) {
	return base("XDG_DATA_HOME", ".local", "share")
}

// SessionsDir is where the embedded session store keeps its files.
func SessionsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions"), nil
}

// DefaultConfigFile returns ConfigDir()/config.yaml when that file exists,
// and "" otherwise.
func DefaultConfigFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		code := "XDG_DIR_CREATE_FAILED"
		if errors.Is(err, fs.ErrPermission) {
			code = "XDG_DIR_PERMISSION_DENIED"
		}
		return oops.Code(code).With("path", path).Wrap(err)
	}
	return nil
}
