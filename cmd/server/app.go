// File: cmd/server/app.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/database"
	"github.com/iyunix/go-relaychat/internal/handlers"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/logger"
	"github.com/iyunix/go-relaychat/internal/metrics"
	"github.com/iyunix/go-relaychat/internal/middleware"
	"github.com/iyunix/go-relaychat/internal/ratelimit"
)

// Application aggregates everything the server runs on.
type Application struct {
	Config     *config.Config
	Logger     logger.Logger
	Registry   *prometheus.Registry
	Controller *chat.Controller
	Report     *chat.Report
	Router     *mux.Router

	limiter    *ratelimit.MemoryRateLimiter
	closeStore func() error
}

// newApplication opens the store, rebuilds the model from it and builds the router.
func newApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*Application, error) {
	gateway, closeStore, err := database.OpenGateway(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app := &Application{Config: cfg, Logger: log, closeStore: closeStore}
	if err := app.build(ctx, gateway); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *Application) build(ctx context.Context, gateway chat.PersistenceGateway) error {
	cfg, log := a.Config, a.Logger

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.Registry)

	ids, err := identity.New(cfg.IDStrategy, cfg.ServerID)
	if err != nil {
		return err
	}
	chatCfg := &chat.Config{
		ServerID:       cfg.ServerID,
		MaxIDAttempts:  cfg.MaxIDAttempts,
		LogLoadSummary: !cfg.IsProduction(),
		Clock:          time.Now,
	}
	a.Controller, err = chat.NewController(chatCfg, chat.NewModel(), gateway, ids, log, m)
	if err != nil {
		return err
	}

	loader, err := chat.NewLoader(a.Controller, gateway, log, m)
	if err != nil {
		return err
	}
	a.Report, err = loader.Load(ctx)
	if err != nil {
		return err
	}

	chatHandler, err := handlers.NewChatHandler(a.Controller, log)
	if err != nil {
		return err
	}
	relayHandler, err := handlers.NewRelayHandler(a.Controller, log)
	if err != nil {
		return err
	}
	a.limiter = ratelimit.NewMemoryRateLimiter(ratelimit.WriteConfig(cfg.RateLimitWrites, cfg.RateLimitWindow))

	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.RecoverPanic(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	relay := api.PathPrefix("/relay").Subrouter()
	relay.Use(middleware.RequireRelayToken([]byte(cfg.RelaySecret), log))
	relayHandler.Register(relay)
	chatHandler.Register(api, middleware.RateLimitMiddleware(a.limiter, "writes", log))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}` + "\n"))
	})

	a.Router = r
	return nil
}

// Close stops background work and releases the store.
func (a *Application) Close() error {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.closeStore == nil {
		return nil
	}
	closeStore := a.closeStore
	a.closeStore = nil
	return closeStore()
}
