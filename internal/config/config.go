// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

// Package config loads process configuration.
//
// Sources are applied in order, later ones winning:
//  1. Default()
//  2. a YAML file, when a path is given
//  3. TASKTRAIL_* environment variables (TASKTRAIL_DATABASE_URL -> database.url)
//  4. command-line flags that were set explicitly (--database-url -> database.url)
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TASKTRAIL_"

// Config is the full process configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	FastStore FastStoreConfig `koanf:"faststore"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Hashing   HashingConfig   `koanf:"hashing"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Cookies   CookieConfig    `koanf:"cookies"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the metrics and probe listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures the relational user store.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"maxconns"`
}

// FastStoreConfig configures the session store.
type FastStoreConfig struct {
	URL string `koanf:"url"`
}

// SecretsConfig holds the process-wide secrets.
type SecretsConfig struct {
	Password string `koanf:"password"`
	Signing  string `koanf:"signing"`
}

// HashingConfig sizes the password hashing worker pool. Zero means one
// worker per CPU.
type HashingConfig struct {
	Workers int `koanf:"workers"`
}

// RateLimitConfig limits requests per client IP. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// CookieConfig controls the attributes of issued cookies.
type CookieConfig struct {
	Secure bool `koanf:"secure"`
}

// Default returns the configuration used for anything left unset.
func Default() Config {
	return Config{
		HTTP:      HTTPConfig{Addr: ":8080"},
		Metrics:   MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:       LogConfig{Format: "json", Level: "info"},
		Database:  DatabaseConfig{MaxConns: 6},
		RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
	}
}

// Load builds a Config from path (optional), the environment and the
// changed flags in flags (optional), then validates it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase is Load for commands that only talk to the user database.
// Only database settings are required.
func LoadDatabase(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := load(path, flags)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return nil, invalid("database.url", "is required")
	}
	return cfg, nil
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", nil, flagKey(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

// envKey maps TASKTRAIL_DATABASE_URL to database.url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// flagKey maps --database-url to database.url. Flags without a dash, such
// as --config, are not configuration keys.
func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !strings.Contains(f.Name, "-") {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(fs, f)
	}
}

// Validate reports the first missing or malformed setting. Every error
// carries the CONFIG_INVALID code and is fatal at startup.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"database.url", c.Database.URL},
		{"faststore.url", c.FastStore.URL},
		{"secrets.password", c.Secrets.Password},
		{"secrets.signing", c.Secrets.Signing},
		{"http.addr", c.HTTP.Addr},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return invalid(r.key, "is required")
		}
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be json or text")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be debug, info, warn or error")
	}
	if c.Database.MaxConns <= 0 {
		return invalid("database.maxconns", "must be positive")
	}
	if c.Hashing.Workers < 0 {
		return invalid("hashing.workers", "must not be negative")
	}
	if c.RateLimit.RPS < 0 {
		return invalid("ratelimit.rps", "must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return invalid("ratelimit.burst", "must be at least 1 when rate limiting is on")
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
