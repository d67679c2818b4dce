// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/syncgate/internal/config"
	"github.com/holomush/syncgate/pkg/errutil"
)

// isolate points XDG lookups at an empty directory and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{"PORT", "USERS_DB_FILE", "DB_FILE"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	isolate(t)
	cfg := config.Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "token", cfg.Auth.Policy)
	assert.Equal(t, config.BackendSQLite, cfg.Users.Backend)
	assert.Equal(t, "syncgate:users:", cfg.Users.RedisPrefix)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), *cfg)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, `
server:
  addr: ":9000"
  origin_patterns: ["example.com"]
auth:
  policy: strict
users:
  backend: postgres
  postgres_url: postgres://file
log:
  level: debug
`)
	t.Setenv("SYNCGATE_USERS__POSTGRES_URL", "postgres://env")
	t.Setenv("SYNCGATE_LOG__LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr, "file overrides default")
	assert.Equal(t, []string{"example.com"}, cfg.Server.OriginPatterns)
	assert.Equal(t, "strict", cfg.Auth.Policy)
	assert.Equal(t, "postgres://env", cfg.Users.PostgresURL, "env overrides file")
	assert.Equal(t, "error", cfg.Log.Level, "flag overrides env")
	assert.Equal(t, "bcrypt", cfg.Auth.Hasher, "untouched keys keep defaults")
	assert.Equal(t, int64(1<<20), cfg.Server.ReadLimit)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "server:\n  addr: \":9000\"\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := config.Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "8123")
	t.Setenv("USERS_DB_FILE", "/tmp/users.db")
	t.Setenv("DB_FILE", "/tmp/data.sqlite")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8123", cfg.Server.Addr)
	assert.Equal(t, "/tmp/users.db", cfg.Users.SQLitePath)
	assert.Equal(t, "/tmp/data.sqlite", cfg.Sync.SQLitePath)
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "8123")
	t.Setenv("SYNCGATE_SERVER__ADDR", ":7000")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_XDGConfigFile(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "config", "syncgate")
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("metrics:\n  addr: \"\"\n"), 0o600))

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	t.Run("explicit file missing", func(t *testing.T) {
		_, err := config.Load(filepath.Join(dir, "missing.yaml"), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "server:\n  port: 80\n")
		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("bad enum in file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "auth:\n  policy: open\n")
		_, err := config.Load(path, nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("bad enum in env", func(t *testing.T) {
		t.Setenv("SYNCGATE_USERS__BACKEND", "etcd")
		_, err := config.Load("", nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "field", "users.backend")
	})
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"empty addr", func(c *config.Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero read limit", func(c *config.Config) { c.Server.ReadLimit = 0 }, "server.read_limit"},
		{"bad policy", func(c *config.Config) { c.Auth.Policy = "open" }, "auth.policy"},
		{"bad hasher", func(c *config.Config) { c.Auth.Hasher = "md5" }, "auth.hasher"},
		{"bcrypt cost", func(c *config.Config) { c.Auth.BcryptCost = 3 }, "auth.bcrypt_cost"},
		{"postgres without url", func(c *config.Config) { c.Users.Backend = config.BackendPostgres }, "users.postgres_url"},
		{"redis without addr", func(c *config.Config) {
			c.Users.Backend = config.BackendRedis
			c.Users.RedisAddr = ""
		}, "users.redis_addr"},
		{"sqlite without path", func(c *config.Config) { c.Users.SQLitePath = "" }, "users.sqlite_path"},
		{"bad sync backend", func(c *config.Config) { c.Sync.Backend = "redis" }, "sync.backend"},
		{"sync sqlite without path", func(c *config.Config) { c.Sync.SQLitePath = "" }, "sync.sqlite_path"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}

	t.Run("argon2id ignores bcrypt cost", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Auth.Hasher = "argon2id"
		cfg.Auth.BcryptCost = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("memory sync needs no path", func(t *testing.T) {
		cfg := config.Defaults()
		cfg.Sync.Backend = config.BackendMemory
		cfg.Sync.SQLitePath = ""
		assert.NoError(t, cfg.Validate())
	})
}
