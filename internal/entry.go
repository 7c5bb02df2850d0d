// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jstcode/internal/api"
	"github.com/starford/jstcode/internal/mcpserver"
	"github.com/starford/jstcode/internal/metrics"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Initialize structured JSON logger.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("persistence_driver", cfg.Persistence.Driver),
		slog.String("persistence_path", cfg.Persistence.Path),
		slog.String("cdn_base", cfg.Preview.CDNBase),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sess, err := NewSession(logger, cfg)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	// Restore the saved project before anything can edit it.
	sess.Workspace.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(sess, cfg, app.version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Warm up the toolchain. Failure keeps the server up: readiness stays
	// false and every build reports a load-stage failure.
	g.Go(func() error {
		if err := sess.Engine.Init(); err != nil {
			logger.Error("Toolchain unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	// Persist snapshots in the background.
	g.Go(func() error {
		return sess.Workspace.Run(gCtx)
	})

	if cfg.Import.WatchDir != "" {
		g.Go(func() error {
			if err := sess.Workspace.Watch(gCtx, cfg.Import.WatchDir); err != nil {
				return fmt.Errorf("watch %s: %w", cfg.Import.WatchDir, err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	err = g.Wait()
	if closeErr := sess.Close(); closeErr != nil {
		logger.Error("Snapshot store close error", slog.String("error", closeErr.Error()))
	}
	if err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group's context so the background loops return.
var errShutdown = errors.New("shutdown")

// newRouter assembles health, metrics, API and MCP routes.
func newRouter(sess *Session, cfg *Config, version string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !sess.Engine.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"toolchain unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api; the SSE stream lives at /api/events.
	r.Mount("/api", api.NewRouter(sess.Workspace, cfg.Auth.AuthEnabled(), cfg.Auth.Token, sess.Broker))

	if cfg.MCP.Enabled {
		auth := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)
		r.Mount(cfg.MCP.Path, auth(mcpserver.New(sess.Workspace, version).Handler()))
	}

	return r
}
