package app

import (
	"context"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/clients/redis"
	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/data/db"
	"github.com/everhighit/coach-api/internal/platform/httpx"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider/router"
	"github.com/everhighit/coach-api/internal/store"
)

// Clients are the process-wide outbound resources. They are built once here and released by Close.
type Clients struct {
	HTTP       *http.Client
	Provider   *router.Router
	Store      store.SessionStore
	SQL        *gorm.DB
	AudioCache *redis.AudioCache
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{HTTP: httpx.NewClient(httpx.DefaultClientConfig())}

	p, err := router.New(ctx, log, cfg, out.HTTP)
	if err != nil {
		return out, fmt.Errorf("init provider: %w", err)
	}
	out.Provider = p

	st, sqlDB, err := resolveSessionStore(log, cfg, out.HTTP)
	if err != nil {
		out.Close(log)
		return Clients{}, err
	}
	out.Store, out.SQL = st, sqlDB

	if cfg.Redis.Addr != "" {
		cache, err := redis.NewAudioCache(log, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL.Duration)
		if err != nil {
			// The cache is optional; synthesis still works without it.
			log.Warn("tts cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			out.AudioCache = cache
		}
	}
	return out, nil
}

func (c Clients) Close(log *logger.Logger) {
	if c.Provider != nil {
		if err := c.Provider.Close(); err != nil {
			log.Warn("provider close failed", "error", err)
		}
	}
	if c.AudioCache != nil {
		if err := c.AudioCache.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if c.SQL != nil {
		if err := db.Close(c.SQL); err != nil {
			log.Warn("session database close failed", "error", err)
		}
	}
	if c.HTTP != nil {
		c.HTTP.CloseIdleConnections()
	}
}
