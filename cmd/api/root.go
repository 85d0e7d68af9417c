// AngelaMos | 2026
// root.go

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/authflow/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "authflow",
		Short:         "Account and session backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	root.PersistentFlags().StringVar(
		&configPath,
		"config",
		"config.yaml",
		"path to config file",
	)

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newKeygenCmd(),
	)

	return root
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
