package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COACH_CONFIG_PATH", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("OPENAI_BASE", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("SESSION_STORE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "prod" {
		t.Fatalf("Env=%q", cfg.Env)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" || cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Fatalf("openai defaults: %+v", cfg.OpenAI)
	}
	if cfg.Lesson.PassThreshold != 0.75 || cfg.Lesson.AverageWindow != 30 {
		t.Fatalf("lesson defaults: %+v", cfg.Lesson)
	}
	if cfg.Store.Backend != "supabase" {
		t.Fatalf("store backend=%q", cfg.Store.Backend)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	p := filepath.Join(dir, "coach.yaml")
	yml := "env: staging\nopenai:\n  base_url: https://proxy.local/v1/\n  timeout: 45\nstore:\n  backend: sqlite\n  timeout: 2s\nlesson:\n  pass_threshold: 0.6\n"
	if err := os.WriteFile(p, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("COACH_CONFIG_PATH", p)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("OPENAI_BASE", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("LESSON_PASS_THRESHOLD", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "dev" {
		t.Fatalf("env should win over yaml, got %q", cfg.Env)
	}
	if cfg.OpenAI.BaseURL != "https://proxy.local/v1" {
		t.Fatalf("BaseURL=%q", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.Timeout.Duration != 45*time.Second {
		t.Fatalf("openai timeout=%v", cfg.OpenAI.Timeout.Duration)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Timeout.Duration != 2*time.Second {
		t.Fatalf("store=%+v", cfg.Store)
	}
	if cfg.Lesson.PassThreshold != 0.6 {
		t.Fatalf("threshold=%v", cfg.Lesson.PassThreshold)
	}
}

func TestLoad_ServiceRoleFallbackName(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COACH_CONFIG_PATH", "")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE", "")
	t.Setenv("SUPABASE_SERVICE", "svc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Supabase.ServiceRole != "svc" || cfg.Supabase.URL != "https://abc.supabase.co" {
		t.Fatalf("supabase=%+v", cfg.Supabase)
	}
	if !cfg.SupabaseConfigured() {
		t.Fatalf("expected supabase configured")
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COACH_CONFIG_PATH", "")
	t.Setenv("SPEECH_BACKEND", "azure")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown speech backend")
	}
}
