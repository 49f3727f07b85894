// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config Error: %v", err)
	}
	appLogger := logger.New("relaychat", cfg.Environment, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	app, err := newApplication(ctx, cfg, appLogger)
	cancel()
	if err != nil {
		log.Fatalf("FATAL: Failed to start relaychat: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			appLogger.Error("store close failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	appLogger.Info("server starting",
		"port", cfg.ServerPort,
		"server_id", cfg.ServerID,
		"store", cfg.StoreDriver,
		"id_strategy", cfg.IDStrategy,
		"users", app.Report.Users,
		"conversations", app.Report.Conversations,
		"messages", app.Report.Messages,
		"skipped", app.Report.Skipped(),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("server startup failed", "error", err)
			return
		}
	}

	appLogger.Info("shutting down server gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", "error", err)
		return
	}
	appLogger.Info("server stopped gracefully")
}
