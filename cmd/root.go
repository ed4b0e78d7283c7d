package main

import (
	"log/slog"

	"github.com/apibase/user-api/internal/config"
	"github.com/apibase/user-api/internal/logging"
	"github.com/spf13/cobra"
)

const serviceName = "user-api"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the user API CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user-api",
		Short: "User account API",
		Long: `HTTP API for account signup, email confirmation, password reset
and self-service account deletion.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig resolves configuration for cmd, with its flags as the top layer.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup(serviceName, version, cfg.Log.Format, nil, logging.WithLevel(level)), nil
}
