package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/database"
	"github.com/folio/folio/internal/email"
	"github.com/folio/folio/internal/handler"
	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/middleware"
	"github.com/folio/folio/internal/notify"
	"github.com/folio/folio/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the contact API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration, following log level edits while running
	var logRef atomic.Pointer[logger.Logger]
	onChange, onError := reloadHooks(&logRef)
	cfg, err := config.Watch(cfgFile, onChange, onError)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	logRef.Store(log)
	log.Info().Str("version", handler.Version).Str("provider", cfg.Email.Provider).Msg("starting folio server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Redis for the per-IP submit limit
	var (
		rdb     *database.Redis
		counter middleware.Counter
	)
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rdb.Close()
		counter = rdb
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")
	}

	// Initialize delivery
	deliverer, err := email.NewDeliverer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email delivery: %w", err)
	}

	// Initialize notification hub and session registry
	hub := notify.NewHub(log)
	logNotifier := notify.NewLogNotifier(log)
	registry := contact.NewRegistry(contactSettings(cfg), deliverer, func(id string) notify.Notifier {
		return notify.Multi(hub.For(id), logNotifier)
	}, cfg.Contact.SessionIdleTTL, log)
	registry.OnTeardown(hub.Drop)
	go registry.Run(ctx)

	h := handler.New(registry, hub, rdb, log, cfg)
	mw := middleware.New(counter, log, cfg)
	r := router.New(h, mw, cfg)

	// Create HTTP server; submit waits for delivery so writes may take longer
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Contact.DeliveryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()
	registry.Close()

	log.Info().Msg("server stopped")
	return nil
}

// reloadHooks returns the config.Watch callbacks. They log through whatever
// log holds when a change arrives; before that they only adjust the level.
func reloadHooks(log *atomic.Pointer[logger.Logger]) (func(*config.Config), func(error)) {
	onChange := func(next *config.Config) {
		lvl := logger.SetLevel(next.Log.Level)
		if l := log.Load(); l != nil {
			l.Info().Str("level", lvl.String()).Msg("config reloaded")
		}
	}
	onError := func(err error) {
		if l := log.Load(); l != nil {
			l.Warn().Err(err).Msg("ignoring invalid config change")
		}
	}
	return onChange, onError
}
