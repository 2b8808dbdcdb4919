package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "30s"-style strings or integer seconds in YAML.
type Duration struct {
	Duration time.Duration
}

func Seconds(n int) Duration { return Duration{Duration: time.Duration(n) * time.Second} }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n) * time.Second
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must look like \"30s\" or be integer seconds: %w", err)
	}
	d.Duration = dd
	return nil
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`

	// MaxRequestBytes caps request bodies, audio uploads included.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

type OpenAIConfig struct {
	APIKey          string   `yaml:"api_key"`
	BaseURL         string   `yaml:"base_url"`
	ChatModel       string   `yaml:"chat_model"`
	TranscribeModel string   `yaml:"transcribe_model"`
	TTSModel        string   `yaml:"tts_model"`
	Timeout         Duration `yaml:"timeout"`
}

type BackendConfig struct {
	// LLM is "openai" or "mock".
	LLM string `yaml:"llm"`
	// Speech is "openai", "gcp" or "mock"; it serves both transcription and synthesis.
	Speech string `yaml:"speech"`
}

type GCPConfig struct {
	// Credentials is either inline service-account JSON or a path to it. Empty uses ADC.
	Credentials string   `yaml:"credentials"`
	Timeout     Duration `yaml:"timeout"`
}

type StoreConfig struct {
	// Backend is "supabase", "postgres" or "sqlite".
	Backend string   `yaml:"backend"`
	Timeout Duration `yaml:"timeout"`
}

type SupabaseConfig struct {
	URL         string `yaml:"url"`
	ServiceRole string `yaml:"service_role"`
	// JWTSecret enables access-token checks on lesson routes when set.
	JWTSecret string `yaml:"jwt_secret"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type LessonConfig struct {
	PassThreshold    float64 `yaml:"pass_threshold"`
	AverageWindow    int     `yaml:"average_window"`
	EvalTemperature  float64 `yaml:"eval_temperature"`
	IntroTemperature float64 `yaml:"intro_temperature"`
	ChatTemperature  float64 `yaml:"chat_temperature"`
}

type CORSConfig struct {
	AllowOrigins     []string `yaml:"allow_origins"`
	AllowOriginRegex string   `yaml:"allow_origin_regex"`
}

type Config struct {
	Env         string `yaml:"env"`
	LogMode     string `yaml:"log_mode"`
	ServiceName string `yaml:"service_name"`

	HTTP     HTTPConfig     `yaml:"http"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Backends BackendConfig  `yaml:"backends"`
	GCP      GCPConfig      `yaml:"gcp"`
	Store    StoreConfig    `yaml:"store"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Lesson   LessonConfig   `yaml:"lesson"`
	CORS     CORSConfig     `yaml:"cors"`
}

// SupabaseConfigured reports whether both the project URL and service role are present.
func (c *Config) SupabaseConfigured() bool {
	return c.Supabase.URL != "" && c.Supabase.ServiceRole != ""
}
