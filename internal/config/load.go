package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/everhighit/coach-api/internal/platform/envutil"
)

func defaultConfig() *Config {
	return &Config{
		Env:         "prod",
		LogMode:     "development",
		ServiceName: "coach-api",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   25 << 20,
		},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ChatModel:       "gpt-4o-mini",
			TranscribeModel: "whisper-1",
			TTSModel:        "gpt-4o-mini-tts",
			Timeout:         Seconds(60),
		},
		Backends: BackendConfig{LLM: "openai", Speech: "openai"},
		GCP:      GCPConfig{Timeout: Seconds(60)},
		Store:    StoreConfig{Backend: "supabase", Timeout: Seconds(30)},
		SQLite:   SQLiteConfig{Path: "coach.db"},
		Redis:    RedisConfig{TTL: Duration{Duration: 24 * time.Hour}},
		Lesson: LessonConfig{
			PassThreshold:    0.75,
			AverageWindow:    30,
			EvalTemperature:  0.4,
			IntroTemperature: 0.6,
			ChatTemperature:  0.5,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{
				"https://english-coach-ai.onrender.com",
				"https://coach.everhighit.com",
				"http://localhost:3000",
			},
			AllowOriginRegex: `^https://.*\.vercel\.app$`,
		},
	}
}

// Load layers defaults, an optional YAML file, an optional .env file and the process environment.
// Missing credentials are not an error here: they surface on first use.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("COACH_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := envutil.String("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := envutil.String("LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := envutil.String("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	} else if v := envutil.String("PORT"); v != "" {
		cfg.HTTP.Addr = ":" + v
	}
	if n := envutil.Int("MAX_REQUEST_BYTES", 0); n > 0 {
		cfg.HTTP.MaxRequestBytes = int64(n)
	}

	if v := envutil.String("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := envutil.String("OPENAI_BASE", "OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := envutil.String("OPENAI_CHAT_MODEL"); v != "" {
		cfg.OpenAI.ChatModel = v
	}
	if v := envutil.String("OPENAI_TRANSCRIBE_MODEL"); v != "" {
		cfg.OpenAI.TranscribeModel = v
	}
	if v := envutil.String("OPENAI_TTS_MODEL"); v != "" {
		cfg.OpenAI.TTSModel = v
	}
	if n := envutil.Int("OPENAI_TIMEOUT_SECONDS", 0); n > 0 {
		cfg.OpenAI.Timeout = Seconds(n)
	}

	if v := envutil.String("LLM_BACKEND"); v != "" {
		cfg.Backends.LLM = v
	}
	if v := envutil.String("SPEECH_BACKEND"); v != "" {
		cfg.Backends.Speech = v
	}
	if v := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.GCP.Credentials = v
	}

	if v := envutil.String("SESSION_STORE"); v != "" {
		cfg.Store.Backend = v
	}
	if n := envutil.Int("STORE_TIMEOUT_SECONDS", 0); n > 0 {
		cfg.Store.Timeout = Seconds(n)
	}
	if v := envutil.String("SUPABASE_URL"); v != "" {
		cfg.Supabase.URL = v
	}
	// Deployments carry either name.
	if v := envutil.String("SUPABASE_SERVICE_ROLE", "SUPABASE_SERVICE"); v != "" {
		cfg.Supabase.ServiceRole = v
	}
	if v := envutil.String("SUPABASE_JWT_SECRET"); v != "" {
		cfg.Supabase.JWTSecret = v
	}
	if v := envutil.String("POSTGRES_DSN", "DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := envutil.String("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}

	if v := envutil.String("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := envutil.String("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	if n := envutil.Int("TTS_CACHE_TTL_SECONDS", 0); n > 0 {
		cfg.Redis.TTL = Seconds(n)
	}

	cfg.Lesson.PassThreshold = envutil.Float("LESSON_PASS_THRESHOLD", cfg.Lesson.PassThreshold)
	cfg.Lesson.AverageWindow = envutil.Int("LESSON_AVERAGE_WINDOW", cfg.Lesson.AverageWindow)

	if origins := envutil.List("CORS_ALLOW_ORIGINS"); len(origins) > 0 {
		cfg.CORS.AllowOrigins = origins
	}
	if v := envutil.String("CORS_ALLOW_ORIGIN_REGEX"); v != "" {
		cfg.CORS.AllowOriginRegex = v
	}
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "prod"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 25 << 20
	}

	cfg.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.OpenAI.BaseURL), "/")
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Timeout.Duration <= 0 {
		cfg.OpenAI.Timeout = Seconds(60)
	}
	if cfg.GCP.Timeout.Duration <= 0 {
		cfg.GCP.Timeout = Seconds(60)
	}
	if cfg.Store.Timeout.Duration <= 0 {
		cfg.Store.Timeout = Seconds(30)
	}
	cfg.Supabase.URL = strings.TrimRight(strings.TrimSpace(cfg.Supabase.URL), "/")

	cfg.Backends.LLM = strings.ToLower(strings.TrimSpace(cfg.Backends.LLM))
	switch cfg.Backends.LLM {
	case "", "openai":
		cfg.Backends.LLM = "openai"
	case "mock":
	default:
		return fmt.Errorf("invalid llm backend %q", cfg.Backends.LLM)
	}

	cfg.Backends.Speech = strings.ToLower(strings.TrimSpace(cfg.Backends.Speech))
	switch cfg.Backends.Speech {
	case "", "openai":
		cfg.Backends.Speech = "openai"
	case "gcp", "google":
		cfg.Backends.Speech = "gcp"
	case "mock":
	default:
		return fmt.Errorf("invalid speech backend %q", cfg.Backends.Speech)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	switch cfg.Store.Backend {
	case "", "supabase", "postgrest":
		cfg.Store.Backend = "supabase"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid session store %q", cfg.Store.Backend)
	}

	if cfg.Lesson.PassThreshold < 0 || cfg.Lesson.PassThreshold > 1 {
		return fmt.Errorf("lesson pass threshold must be within [0,1], got %v", cfg.Lesson.PassThreshold)
	}
	if cfg.Lesson.AverageWindow <= 0 {
		cfg.Lesson.AverageWindow = 30
	}

	cfg.CORS.AllowOriginRegex = strings.TrimSpace(cfg.CORS.AllowOriginRegex)
	if cfg.CORS.AllowOriginRegex != "" {
		if _, err := regexp.Compile(cfg.CORS.AllowOriginRegex); err != nil {
			return fmt.Errorf("invalid cors origin regex: %w", err)
		}
	}
	return nil
}
