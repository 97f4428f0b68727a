package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nate-a11y/lrpbolt-sub001/internal/api"
	"github.com/nate-a11y/lrpbolt-sub001/internal/app"
	"github.com/nate-a11y/lrpbolt-sub001/internal/config"
	"github.com/nate-a11y/lrpbolt-sub001/internal/db"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- pipeline ----
	reg := prometheus.NewRegistry()
	a := app.Build(ctx, cfg, pool, reg, logger)
	defer a.Close() //nolint:errcheck

	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	a.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Queue:    a.Service,
		Process:  a.Notify,
		Tickets:  a.Tickets,
		DB:       pool,
		Priority: a.Queue,
		Gatherer: reg,
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the listener, sweeper, retry loop and workers.
	cancelWorkers()

	// 3. Wait for the workers. A document already claimed keeps sending and
	// writes its status on a detached context, so this can take up to the
	// processors' settle timeout.
	a.Wait()

	logger.Info("server stopped cleanly")
}
