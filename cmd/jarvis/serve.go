package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/antoniostano/jarvis/internal/app"
	"github.com/antoniostano/jarvis/internal/config"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr != "" {
				cfg.BindAddr = addr
			}
			return serve(cmd.Context(), cfg, cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides APP_BIND_ADDR")
	return cmd
}

func serve(parent context.Context, cfg config.Config, cmd *cobra.Command) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	built, err := app.Build(ctx, cfg, app.Options{Logger: logger, Version: version})
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	if ok, missing := cfg.ValidateAPIKeys(); !ok {
		logger.Warn("running with missing API keys", "missing", missing)
	}
	logger.Info("engines resolved",
		"recognition", built.Engines.Recognition,
		"conversation", built.Engines.Conversation,
		"synthesis", built.Engines.Synthesis,
		"journal", built.Engines.Journal,
	)

	built.Sessions.StartJanitor(ctx, 30*time.Second)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	// Closing sessions first ends the websocket handlers Shutdown waits on.
	built.Sessions.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}
	logger.Info("shutdown complete")
	return nil
}
