// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/config"
)

// NewUserCmd creates the user management command group.
func NewUserCmd(deps *UserDeps) *cobra.Command {
	if deps == nil {
		deps = &UserDeps{}
	}
	if deps.UsersOpener == nil {
		deps.UsersOpener = openUsers
	}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sync users",
	}
	cmd.AddCommand(newUserAddCmd(deps))
	cmd.AddCommand(newUserRemoveCmd(deps))
	return cmd
}

func newUserAddCmd(deps *UserDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Register a user",
		Long: `Register a user. An existing user keeps their original password.
Usernames may not contain "-" since the connection token splits on it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd, deps, func(ctx context.Context, store *auth.CredentialStore) error {
				created, err := store.AddUser(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if created {
					cmd.Printf("user %q created\n", args[0])
				} else {
					cmd.Printf("user %q already exists\n", args[0])
				}
				return nil
			})
		},
	}
}

func newUserRemoveCmd(deps *UserDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentialStore(cmd, deps, func(ctx context.Context, store *auth.CredentialStore) error {
				if err := store.RemoveUser(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("user %q removed\n", args[0])
				return nil
			})
		},
	}
}

// withCredentialStore opens the configured credential store, runs fn and
// releases the store.
func withCredentialStore(cmd *cobra.Command, deps *UserDeps, fn func(context.Context, *auth.CredentialStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Users.Backend == config.BackendPostgres && cfg.Users.AutoMigrate {
		if err := runAutoMigration(cfg, newUsersMigrator); err != nil {
			return err
		}
	}

	repo, release, err := deps.UsersOpener(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	store, err := newCredentialStore(cfg, repo, logger)
	if err != nil {
		return err
	}
	return fn(ctx, store)
}
