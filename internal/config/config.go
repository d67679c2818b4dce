// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads syncgate configuration from defaults, a YAML file,
// the environment and command line flags, in that order of precedence.
package config

import (
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/logging"
	"github.com/holomush/syncgate/internal/xdg"
)

// Users backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the complete syncgate configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" json:"server,omitempty"`
	Auth    AuthConfig    `koanf:"auth" json:"auth,omitempty"`
	Users   UsersConfig   `koanf:"users" json:"users,omitempty"`
	Sync    SyncConfig    `koanf:"sync" json:"sync,omitempty"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty"`
}

// ServerConfig configures the WebSocket listener.
type ServerConfig struct {
	Addr           string   `koanf:"addr" json:"addr,omitempty" jsonschema:"description=WebSocket listen address"`
	ReadLimit      int64    `koanf:"read_limit" json:"read_limit,omitempty" jsonschema:"minimum=1,description=Largest accepted frame in bytes"`
	OriginPatterns []string `koanf:"origin_patterns" json:"origin_patterns,omitempty" jsonschema:"description=Host patterns allowed in the Origin header"`
}

// AuthConfig configures credential checks.
type AuthConfig struct {
	Policy     string `koanf:"policy" json:"policy,omitempty" jsonschema:"enum=token,enum=strict,enum=message"`
	Hasher     string `koanf:"hasher" json:"hasher,omitempty" jsonschema:"enum=bcrypt,enum=argon2id"`
	BcryptCost int    `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" jsonschema:"minimum=4,maximum=31"`
}

// UsersConfig selects where credentials are stored.
type UsersConfig struct {
	Backend     string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=sqlite,enum=postgres,enum=redis"`
	SQLitePath  string `koanf:"sqlite_path" json:"sqlite_path,omitempty"`
	PostgresURL string `koanf:"postgres_url" json:"postgres_url,omitempty"`
	AutoMigrate bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" jsonschema:"description=Apply postgres migrations when serve starts"`
	RedisAddr   string `koanf:"redis_addr" json:"redis_addr,omitempty"`
	RedisPrefix string `koanf:"redis_prefix" json:"redis_prefix,omitempty"`
}

// SyncConfig selects where the update log is kept.
type SyncConfig struct {
	Backend    string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=sqlite,enum=memory"`
	SQLitePath string `koanf:"sqlite_path" json:"sqlite_path,omitempty"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics listen address; empty disables"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8000",
			ReadLimit: 1 << 20,
		},
		Auth: AuthConfig{
			Policy:     "token",
			Hasher:     "bcrypt",
			BcryptCost: 10,
		},
		Users: UsersConfig{
			Backend:     BackendSQLite,
			SQLitePath:  xdg.UsersDBPath(),
			AutoMigrate: true,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "syncgate:users:",
		},
		Sync: SyncConfig{
			Backend:    BackendSQLite,
			SQLitePath: xdg.SyncDBPath(),
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid(field, "%s must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// Validate checks enumerations and the settings each backend requires.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	if c.Server.ReadLimit <= 0 {
		return invalid("server.read_limit", "server.read_limit must be positive, got %d", c.Server.ReadLimit)
	}
	if err := oneOf("auth.policy", c.Auth.Policy, "token", "strict", "message"); err != nil {
		return err
	}
	if err := oneOf("auth.hasher", c.Auth.Hasher, "bcrypt", "argon2id"); err != nil {
		return err
	}
	if c.Auth.Hasher == "bcrypt" && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return invalid("auth.bcrypt_cost", "auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	if err := oneOf("users.backend", c.Users.Backend, BackendSQLite, BackendPostgres, BackendRedis); err != nil {
		return err
	}
	switch c.Users.Backend {
	case BackendSQLite:
		if c.Users.SQLitePath == "" {
			return invalid("users.sqlite_path", "users.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Users.PostgresURL == "" {
			return invalid("users.postgres_url", "users.postgres_url is required for the postgres backend")
		}
	case BackendRedis:
		if c.Users.RedisAddr == "" {
			return invalid("users.redis_addr", "users.redis_addr is required for the redis backend")
		}
	}

	if err := oneOf("sync.backend", c.Sync.Backend, BackendSQLite, BackendMemory); err != nil {
		return err
	}
	if c.Sync.Backend == BackendSQLite && c.Sync.SQLitePath == "" {
		return invalid("sync.sqlite_path", "sync.sqlite_path is required for the sqlite backend")
	}

	if err := oneOf("log.format", c.Log.Format, "json", "text"); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level: %v", err)
	}
	return nil
}
