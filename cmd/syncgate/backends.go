// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/syncgate/internal/auth"
	authpg "github.com/holomush/syncgate/internal/auth/postgres"
	authredis "github.com/holomush/syncgate/internal/auth/redis"
	authsqlite "github.com/holomush/syncgate/internal/auth/sqlite"
	"github.com/holomush/syncgate/internal/config"
	"github.com/holomush/syncgate/internal/store"
	"github.com/holomush/syncgate/internal/syncpeer"
)

// openUsers opens the credential repository selected by users.backend.
func openUsers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.CredentialRepository, func(), error) {
	switch cfg.Users.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(ctx, logger, cfg.Users.SQLitePath, store.SQLiteUsers)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("credential store opened", "backend", config.BackendSQLite, "path", cfg.Users.SQLitePath)
		return authsqlite.NewCredentialRepository(db), func() { _ = db.Close() }, nil

	case config.BackendPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.Users.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("credential store opened", "backend", config.BackendPostgres)
		return authpg.NewCredentialRepository(pool), pool.Close, nil

	case config.BackendRedis:
		rdb, err := store.OpenRedis(ctx, cfg.Users.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("credential store opened", "backend", config.BackendRedis, "addr", cfg.Users.RedisAddr)
		return authredis.NewCredentialRepository(rdb, cfg.Users.RedisPrefix), func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "users.backend").
			Errorf("unknown users backend %q", cfg.Users.Backend)
	}
}

// openUpdates opens the update log selected by sync.backend.
func openUpdates(ctx context.Context, cfg *config.Config, logger *slog.Logger) (syncpeer.UpdateStore, func(), error) {
	switch cfg.Sync.Backend {
	case config.BackendSQLite:
		db, err := store.OpenSQLite(ctx, logger, cfg.Sync.SQLitePath, store.SQLiteSync)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("update log opened", "backend", config.BackendSQLite, "path", cfg.Sync.SQLitePath)
		return syncpeer.NewSQLiteStore(db), func() { _ = db.Close() }, nil

	case config.BackendMemory:
		logger.Warn("update log is in memory; updates are lost on restart")
		return syncpeer.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, oops.Code("CONFIG_INVALID").
			With("field", "sync.backend").
			Errorf("unknown sync backend %q", cfg.Sync.Backend)
	}
}

// newCredentialStore builds the CredentialStore over repo with the
// configured hasher.
func newCredentialStore(cfg *config.Config, repo auth.CredentialRepository, logger *slog.Logger) (*auth.CredentialStore, error) {
	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	return auth.NewCredentialStoreWithLogger(repo, hasher, logger)
}

// newUsersMigrator creates a migrator for the users schema of the
// configured backend.
func newUsersMigrator(cfg *config.Config) (Migrator, error) {
	var (
		m   *store.Migrator
		err error
	)
	switch cfg.Users.Backend {
	case config.BackendPostgres:
		m, err = store.NewPostgresMigrator(cfg.Users.PostgresURL)
	case config.BackendSQLite:
		m, err = store.NewSQLiteMigrator(store.SQLiteUsers, cfg.Users.SQLitePath)
	default:
		return nil, oops.Code("MIGRATION_UNSUPPORTED").
			With("backend", cfg.Users.Backend).
			Errorf("the %s users backend has no schema to migrate", cfg.Users.Backend)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// runAutoMigration applies pending users migrations and always closes the
// migrator.
func runAutoMigration(cfg *config.Config, factory func(*config.Config) (Migrator, error)) (err error) {
	migrator, err := factory(cfg)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("backend", cfg.Users.Backend).Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = oops.Code("MIGRATION_CLOSE_FAILED").Wrap(closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("backend", cfg.Users.Backend).Wrap(err)
	}
	return nil
}
