package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/antoniostano/jarvis/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Jarvis voice assistant backend",
		Long:          "jarvis serves the voice assistant API: websocket sessions that turn speech into commands and spoken replies.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is normal outside local development.
			if envFile != "" {
				return godotenv.Load(envFile)
			}
			_ = godotenv.Load()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file instead of ./.env")

	serve := newServeCmd()
	root.AddCommand(serve, newAskCmd(), newReplayCmd(), newVersionCmd())
	// Running bare `jarvis` starts the server.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func newLogger(cfg config.Config, out io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
