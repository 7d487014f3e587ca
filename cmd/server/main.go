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

	"github.com/anonto42/shining-stars/backend/internal/observability"
	"github.com/anonto42/shining-stars/backend/internal/router"
	"github.com/anonto42/shining-stars/backend/pkg/config"
	"github.com/anonto42/shining-stars/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.CloseDB()

	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		return err
	}

	e := echo.New()
	router.SetupMiddleware(e, logger, cfg.Origins())

	opts := router.Options{
		Postgres:        db.Postgres,
		Mongo:           db.MongoDatabase(),
		Redis:           db.Redis,
		JWTSecret:       cfg.JWTSecret,
		TokenTTL:        cfg.TokenTTL(),
		ViewDedupWindow: cfg.ViewDedupWindow(),
		UploadDir:       cfg.UploadDir,
	}
	if firebaseApp != nil {
		opts.FirebaseAuth = firebaseApp.AuthClient
	}
	if err := router.SetupRoutes(ctx, e, opts); err != nil {
		return err
	}

	metrics := router.NewMetricsServer(cfg.MetricsPort, observability.Handler())
	go func() {
		slog.Info("Metrics server listening", slog.String("port", cfg.MetricsPort))
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server listening", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown failed", slog.Any("error", err))
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
	return nil
}
