package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/profilescan/api"
	"github.com/use-agent/profilescan/api/handler"
	"github.com/use-agent/profilescan/auth"
	"github.com/use-agent/profilescan/cache"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExit(exitUsage, serve(cmd.Context()))
		},
	}
}

func serve(parent context.Context) error {
	slog.Info("profilescan starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"interactive", cfg.Server.Interactive,
	)

	// Second-factor codes can only be typed when an operator watches the
	// server's terminal.
	var prompter auth.CodePrompter = auth.RejectPrompter{}
	if cfg.Server.Interactive {
		prompter = auth.NewTerminalPrompter()
	}

	c, err := build(parent, cfg, prompter, cache.New(cfg.Cache.MaxEntries))
	if err != nil {
		return err
	}

	scans := handler.NewScans(c.service, cfg.Scraper.AllowAnyHost, cfg.Server.WebhookSecret)
	router := api.NewRouter(cfg, scans, c.store, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give an in-flight scan a moment to finish; its browser is closed by
	// the scraper when the request context is canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("profilescan stopped")
	return nil
}
