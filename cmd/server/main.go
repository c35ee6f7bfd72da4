// Package main is the entry point for the lotledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lotledger/internal/app"
	v1 "lotledger/internal/infrastructure/http/v1"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/internal/infrastructure/storage/postgres/migrations"
	"lotledger/pkg/config"
	"lotledger/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadWithValidation("server")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting lotledger server", "version", version, "environment", cfg.Server.Environment)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Up(ctx, pool.Pool)
		if err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Infow("migrations applied", "count", applied)
	}

	// --- Domain services ---
	_, deps, err := app.NewPostgres(pool, *cfg)
	if err != nil {
		log.Fatalw("failed to wire storage", "error", err)
	}
	services := app.New(deps)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Services:    services,
		Database:    pool,
		Logger:      log,
		Version:     version,
		Development: cfg.Log.Development,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
