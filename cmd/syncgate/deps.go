// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/config"
	"github.com/holomush/syncgate/internal/observability"
	"github.com/holomush/syncgate/internal/syncpeer"
)

// UsersOpener opens the configured credential repository. The returned
// function releases it.
type UsersOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.CredentialRepository, func(), error)

// UpdatesOpener opens the configured update log. The returned function
// releases it.
type UpdatesOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (syncpeer.UpdateStore, func(), error)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// UsersOpener opens the credential repository.
	// Default: openUsers
	UsersOpener UsersOpener

	// UpdatesOpener opens the update log.
	// Default: openUpdates
	UpdatesOpener UpdatesOpener

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the relay listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// MigratorFactory creates the migrator used by users.auto_migrate.
	// Default: newUsersMigrator
	MigratorFactory func(cfg *config.Config) (Migrator, error)
}

// UserDeps contains injectable dependencies for the user commands.
type UserDeps struct {
	// UsersOpener opens the credential repository.
	// Default: openUsers
	UsersOpener UsersOpener
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for the configured users backend.
	// Default: newUsersMigrator
	MigratorFactory func(cfg *config.Config) (Migrator, error)
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}
