// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/syncgate/internal/config"
	"github.com/holomush/syncgate/internal/logging"
	"github.com/holomush/syncgate/internal/observability"
	"github.com/holomush/syncgate/internal/relay"
	"github.com/holomush/syncgate/internal/syncpeer"
	"github.com/holomush/syncgate/pkg/errutil"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *ServeDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync server",
		Long: `Start the WebSocket sync server. Clients authenticate while connecting
with the "authorization" subprotocol followed by <username>-<password>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cfg, cmd, deps)
		},
	}
}

// newLogger builds the process logger from cfg.
func newLogger(cfg *config.Config, cmd *cobra.Command) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup("syncgate", version, cfg.Log.Format, level, cmd.ErrOrStderr()), nil
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until ctx is cancelled or a server fails. If deps is nil, default
// implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.UsersOpener == nil {
		deps.UsersOpener = openUsers
	}
	if deps.UpdatesOpener == nil {
		deps.UpdatesOpener = openUpdates
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, observability.WithLogger(logger))
		}
	}
	if deps.ListenerFactory == nil {
		deps.ListenerFactory = net.Listen
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = newUsersMigrator
	}

	logger, err := newLogger(cfg, cmd)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cfg.Users.Backend == config.BackendPostgres && cfg.Users.AutoMigrate {
		if err := runAutoMigration(cfg, deps.MigratorFactory); err != nil {
			return err
		}
		logger.Info("users migrations applied")
	}

	repo, closeUsers, err := deps.UsersOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open credential store").Wrap(err)
	}
	defer closeUsers()

	credentials, err := newCredentialStore(cfg, repo, logger)
	if err != nil {
		return err
	}

	updates, closeUpdates, err := deps.UpdatesOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open update log").Wrap(err)
	}
	defer closeUpdates()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var relaySrv *relay.Server
	var metrics relay.Metrics = relay.NopMetrics{}
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		// relaySrv is assigned before Start, so the checker never sees it nil.
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool { return relaySrv.Ready() }, logger)
		metrics = obsServer.Metrics()
	}

	authorizer, err := relay.NewAuthorizer(relay.AuthorizerConfig{
		Verifier: credentials,
		Policy:   relay.Policy(cfg.Auth.Policy),
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	peer := syncpeer.NewSuperPeer(updates, syncpeer.WithLogger(logger))
	relaySrv, err = relay.NewServer(relay.ServerConfig{
		Addr:           cfg.Server.Addr,
		Authorizer:     authorizer,
		Connect:        relay.SuperPeerConnector(peer),
		ReadLimit:      cfg.Server.ReadLimit,
		OriginPatterns: cfg.Server.OriginPatterns,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("RELAY_LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close()
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				errutil.LogWarn(shutdownCtx, logger, "error stopping observability server", err)
			}
		}()
	}

	cmd.Println("syncgate listening on " + listener.Addr().String())
	logger.Info("syncgate ready",
		"addr", listener.Addr().String(),
		"policy", cfg.Auth.Policy,
		"users_backend", cfg.Users.Backend,
		"sync_backend", cfg.Sync.Backend,
	)

	if err := relaySrv.Serve(ctx, listener); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the process context when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			errutil.LogError(logger, "server error, triggering shutdown", err, "server", serverName)
			cancel()
		}
	case <-ctx.Done():
	}
}
