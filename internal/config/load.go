// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/syncgate/internal/xdg"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// levels: SYNCGATE_USERS__POSTGRES_URL sets users.postgres_url.
const EnvPrefix = "SYNCGATE_"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"auth-policy":   "auth.policy",
	"users-backend": "users.backend",
	"users-db":      "users.sqlite_path",
	"sync-backend":  "sync.backend",
	"sync-db":       "sync.sqlite_path",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
}

// legacyEnv maps the variables older deployments set to configuration keys.
var legacyEnv = map[string]string{
	"PORT":          "server.addr",
	"USERS_DB_FILE": "users.sqlite_path",
	"DB_FILE":       "sync.sqlite_path",
}

// RegisterFlags adds the configuration override flags to fs. Their defaults
// are informational; only flags set on the command line override.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("addr", d.Server.Addr, "WebSocket listen address")
	fs.String("auth-policy", d.Auth.Policy, "connection auth policy (token, strict or message)")
	fs.String("users-backend", d.Users.Backend, "credential backend (sqlite, postgres or redis)")
	fs.String("users-db", d.Users.SQLitePath, "sqlite credential database path")
	fs.String("sync-backend", d.Sync.Backend, "update log backend (sqlite or memory)")
	fs.String("sync-db", d.Sync.SQLitePath, "sqlite update log path")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn or error)")
}

// Load builds the configuration. path names a YAML file; when empty the
// file at xdg.ConfigFile is used if it exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	switch {
	case err == nil:
		if err := ValidateFile(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}

	legacy := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		if key == "PORT" {
			value = ":" + value
		}
		return target, value
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
