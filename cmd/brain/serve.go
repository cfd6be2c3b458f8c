package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/clive/apps/brain/internal/api"
	"github.com/iammorganparry/clive/apps/brain/internal/config"
	"github.com/iammorganparry/clive/apps/brain/internal/inbox"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
}

func serve(opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.brain.RunSweeper(ctx, cfg.SweepInterval)

	if cfg.InboxDir != "" {
		w, err := inbox.New(cfg.InboxDir, a.brain, inbox.DefaultDebounce, logger)
		if err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
		go w.Run(ctx)
		defer func() { <-w.Done() }()
	}

	router := api.NewRouter(a.db, a.brain, a.embeddingCheck, a.vectorCheck, a.metrics, cfg.APIKey, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("brain server starting", "addr", addr, "knowledge", a.brain.Size())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	// Stops the sweeper and the inbox watcher too.
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return serveErr
}
