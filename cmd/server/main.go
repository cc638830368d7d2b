// ZK Insurance Verifier - eligibility proof server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/zkverify/internal/api"
	"github.com/ashureev/zkverify/internal/config"
	"github.com/ashureev/zkverify/internal/prover"
	"github.com/ashureev/zkverify/internal/server"
	"github.com/ashureev/zkverify/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "max_sessions", cfg.MaxSessions, "circuit_path", cfg.CircuitPath)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	pipeline := prover.NewPipeline(cfg, prover.ExecRunner{})
	if err := pipeline.CheckToolchain(); err != nil {
		// Degraded but serviceable: sessions get a clean failure response
		// until the operator fixes the deployment.
		slog.Error("Proving toolchain check failed", "error", err)
	}

	registry := server.NewRegistry()
	srv := server.New(cfg, pipeline, repo, registry)

	if err := srv.Listen(); err != nil {
		slog.Error("Failed to bind listener", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background cleanup of old audit rows and orphaned workspaces.
	prover.StartSweepWorker(ctx, repo, cfg.WorkDir, cfg.RecordTTL, cfg.SweepInterval)

	// Admin HTTP surface (health, stats, metrics).
	var adminSrv *http.Server
	if cfg.AdminPort != "" {
		r := chi.NewRouter()
		r.Use(chiMiddleware.RequestID)
		r.Use(chiMiddleware.RealIP)
		r.Use(chiMiddleware.Recoverer)
		api.NewHandler(repo, registry, cfg).RegisterRoutes(r)

		adminSrv = &http.Server{
			Addr:         ":" + cfg.AdminPort,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("Admin server listening", "addr", adminSrv.Addr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Admin server failed", "error", err)
			}
		}()
	}

	// Start the accept loop.
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.Shutdown(shutdownCtx)

	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin server forced to shutdown", "error", err)
		}
	}

	slog.Info("Server stopped successfully")
}
