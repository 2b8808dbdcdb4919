package app

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig("sqlite")
	cfg.Env = "test"
	cfg.Backends.LLM = "mock"
	cfg.Backends.Speech = "mock"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "coach.db")
	cfg.HTTP.MaxRequestBytes = 1 << 20
	return cfg
}

func TestWiring_MockBackends(t *testing.T) {
	log := logger.Nop()
	cfg := mockConfig(t)

	clients, err := wireClients(context.Background(), log, cfg)
	if err != nil {
		t.Fatalf("wireClients: %v", err)
	}
	t.Cleanup(func() { clients.Close(log) })
	if clients.SQL == nil || clients.AudioCache != nil {
		t.Fatalf("clients=%+v", clients)
	}

	svc := wireServices(log, cfg, clients)
	if svc.Voice == nil || svc.Lessons == nil {
		t.Fatalf("services not wired: %+v", svc)
	}
	h := wireHandlers(log, cfg, clients, svc)
	if h.Auth.Enabled() {
		t.Fatalf("auth should be disabled without a JWT secret")
	}
	engine := wireRouter(log, cfg, observability.NewMetrics(), h)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/envcheck", nil))
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env["session_store"] != "sqlite" || env["llm_backend"] != "mock" || env["OPENAI_API_KEY_set"] != false {
		t.Fatalf("env=%v", env)
	}
}

func TestWiring_UnknownBackendFails(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Backends.LLM = "bedrock"
	if _, err := wireClients(context.Background(), logger.Nop(), cfg); err == nil {
		t.Fatalf("expected unknown llm backend to fail")
	}
}
