package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/data/db"
	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/store"
)

func testConfig(backend string) *config.Config {
	cfg := &config.Config{}
	cfg.Store.Backend = backend
	cfg.Store.Timeout = config.Seconds(5)
	return cfg
}

func TestResolveSessionStore_SupabaseWithoutCredentials(t *testing.T) {
	st, sqlDB, err := resolveSessionStore(logger.Nop(), testConfig("supabase"), nil)
	if err != nil {
		t.Fatalf("resolveSessionStore: %v", err)
	}
	if sqlDB != nil {
		t.Fatalf("supabase backend should not open a SQL handle")
	}
	if _, err := st.GetSession(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestResolveSessionStore_PostgresWithoutDSN(t *testing.T) {
	st, _, err := resolveSessionStore(logger.Nop(), testConfig("postgres"), nil)
	if err != nil {
		t.Fatalf("resolveSessionStore: %v", err)
	}
	if _, err := st.CreateSession(context.Background(), &lesson.Session{}); !errors.Is(err, store.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestResolveSessionStore_SQLiteFile(t *testing.T) {
	cfg := testConfig("sqlite")
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "coach.db")

	st, sqlDB, err := resolveSessionStore(logger.Nop(), cfg, nil)
	if err != nil {
		t.Fatalf("resolveSessionStore: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(sqlDB) })

	created, err := st.CreateSession(context.Background(), &lesson.Session{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID == uuid.Nil || created.Status != lesson.StatusActive {
		t.Fatalf("session=%+v", created)
	}
}

func TestResolveSessionStore_ConnectFailure(t *testing.T) {
	prev := openSQL
	openSQL = func(*logger.Logger, string, string) (*gorm.DB, error) { return nil, errors.New("dial refused") }
	t.Cleanup(func() { openSQL = prev })

	cfg := testConfig("postgres")
	cfg.Postgres.DSN = "postgres://coach@localhost:1/coach"
	_, _, err := resolveSessionStore(logger.Nop(), cfg, nil)

	var got *SessionStoreBootstrapError
	if !errors.As(err, &got) || got.Code != SessionStoreBootstrapErrorConnectFailed || got.Backend != "postgres" {
		t.Fatalf("expected connect_failed bootstrap error, got %v", err)
	}
}

func TestResolveSessionStore_InvalidBackend(t *testing.T) {
	_, _, err := resolveSessionStore(logger.Nop(), testConfig("mongo"), nil)
	var got *SessionStoreBootstrapError
	if !errors.As(err, &got) || got.Code != SessionStoreBootstrapErrorInvalidBackend {
		t.Fatalf("expected invalid_backend, got %v", err)
	}
}
