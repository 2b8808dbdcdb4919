package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/everhighit/coach-api/internal/config"
	httpapi "github.com/everhighit/coach-api/internal/http"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type App struct {
	Log    *logger.Logger
	Config *config.Config

	Clients  Clients
	Services Services
	server   *httpapi.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	metrics := observability.Init()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(log, cfg, clients)
	handlerset := wireHandlers(log, cfg, clients, serviceset)
	engine := wireRouter(log, cfg, metrics, handlerset)

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}, engine)

	log.Info("coach api ready",
		"addr", cfg.HTTP.Addr,
		"env", cfg.Env,
		"llm_backend", cfg.Backends.LLM,
		"speech_backend", cfg.Backends.Speech,
		"session_store", cfg.Store.Backend,
		"tts_cache", clients.AudioCache != nil,
	)

	return &App{
		Log:          log,
		Config:       cfg,
		Clients:      clients,
		Services:     serviceset,
		server:       srv,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled and then releases every shared resource.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return errors.New("app not initialized")
	}
	err := a.server.Run(ctx, a.Config.HTTP.ShutdownTimeout.Duration)
	a.Close()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close(a.Log)
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Log.Sync()
}
