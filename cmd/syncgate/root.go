// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/syncgate/internal/config"
)

// NewRootCmd creates the root command for the syncgate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(NewServeCmd(nil), NewUserCmd(nil), NewMigrateCmd(nil))
}

func newRootCmd(subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syncgate",
		Short: "syncgate - an authenticating gate for a realtime sync peer",
		Long: `syncgate serves a realtime synchronization peer over WebSocket and
only lets authenticated users apply updates.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/syncgate/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(subcommands...)

	return cmd
}

// loadConfig reads the configuration for cmd, honoring --config and the
// override flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}
	return config.Load(path, cmd.Flags())
}
