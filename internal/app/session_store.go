package app

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/clients/supabase"
	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/data/db"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/store"
	"github.com/everhighit/coach-api/internal/store/sqlstore"
)

var openSQL = db.Open

type SessionStoreBootstrapErrorCode string

const (
	SessionStoreBootstrapErrorInvalidBackend SessionStoreBootstrapErrorCode = "invalid_backend"
	SessionStoreBootstrapErrorConnectFailed  SessionStoreBootstrapErrorCode = "connect_failed"
	SessionStoreBootstrapErrorMigrateFailed  SessionStoreBootstrapErrorCode = "migrate_failed"
)

type SessionStoreBootstrapError struct {
	Code    SessionStoreBootstrapErrorCode
	Backend string
	Cause   error
}

func (e *SessionStoreBootstrapError) Error() string {
	if e == nil {
		return "session store bootstrap failed"
	}
	return fmt.Sprintf("session store bootstrap failed (code=%s backend=%q): %v", e.Code, e.Backend, e.Cause)
}

func (e *SessionStoreBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveSessionStore picks the configured backend. Missing credentials yield an Unconfigured store
// so start-up continues and each lesson request reports session_store_unavailable.
func resolveSessionStore(log *logger.Logger, cfg *config.Config, httpClient *http.Client) (store.SessionStore, *gorm.DB, error) {
	backend := cfg.Store.Backend
	var (
		inner store.SessionStore
		sqlDB *gorm.DB
	)

	switch backend {
	case "supabase":
		c, err := supabase.New(log, cfg.Supabase.URL, cfg.Supabase.ServiceRole, httpClient)
		if err != nil {
			if !errors.Is(err, store.ErrNotConfigured) {
				return nil, nil, &SessionStoreBootstrapError{Code: SessionStoreBootstrapErrorConnectFailed, Backend: backend, Cause: err}
			}
			log.Warn("Session store not configured; lesson endpoints will fail", "backend", backend, "missing", "SUPABASE_URL or SUPABASE_SERVICE_ROLE")
			inner = store.Unconfigured{Reason: "SUPABASE_URL or SUPABASE_SERVICE_ROLE missing"}
		} else {
			inner = c
		}

	case "postgres", "sqlite":
		dsn := cfg.Postgres.DSN
		if backend == "sqlite" {
			dsn = cfg.SQLite.Path
		}
		if backend == "postgres" && dsn == "" {
			log.Warn("Session store not configured; lesson endpoints will fail", "backend", backend, "missing", "POSTGRES_DSN")
			inner = store.Unconfigured{Reason: "POSTGRES_DSN missing"}
			break
		}
		gdb, err := openSQL(log, backend, dsn)
		if err != nil {
			return nil, nil, &SessionStoreBootstrapError{Code: SessionStoreBootstrapErrorConnectFailed, Backend: backend, Cause: err}
		}
		if err := db.AutoMigrateAll(gdb); err != nil {
			_ = db.Close(gdb)
			return nil, nil, &SessionStoreBootstrapError{Code: SessionStoreBootstrapErrorMigrateFailed, Backend: backend, Cause: err}
		}
		inner, sqlDB = sqlstore.New(gdb, log), gdb

	default:
		return nil, nil, &SessionStoreBootstrapError{
			Code:    SessionStoreBootstrapErrorInvalidBackend,
			Backend: backend,
			Cause:   fmt.Errorf("unsupported session store %q", backend),
		}
	}

	log.Info("Session store selected", "backend", backend, "timeout", cfg.Store.Timeout.Duration.String())
	return store.Instrument(store.WithTimeout(inner, cfg.Store.Timeout.Duration), backend), sqlDB, nil
}
