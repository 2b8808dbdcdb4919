package app

import (
	"github.com/everhighit/coach-api/internal/config"
	httpH "github.com/everhighit/coach-api/internal/http/handlers"
	httpMW "github.com/everhighit/coach-api/internal/http/middleware"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Voice  *httpH.VoiceHandler
	Lesson *httpH.LessonHandler
	Auth   *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, cfg *config.Config, clients Clients, svc Services) Handlers {
	auth := httpMW.NewAuthMiddleware(log, cfg.Supabase.JWTSecret)
	return Handlers{
		Health: httpH.NewHealthHandler(cfg.Env, envStatus(cfg, clients, auth)),
		Voice:  httpH.NewVoiceHandler(log, svc.Voice),
		Lesson: httpH.NewLessonHandler(log, svc.Lessons),
		Auth:   auth,
	}
}

func envStatus(cfg *config.Config, clients Clients, auth *httpMW.AuthMiddleware) httpH.EnvStatus {
	return httpH.EnvStatus{
		OpenAIKeySet:           cfg.OpenAI.APIKey != "",
		SupabaseURLSet:         cfg.Supabase.URL != "",
		SupabaseServiceRoleSet: cfg.Supabase.ServiceRole != "",
		LLMBackend:             cfg.Backends.LLM,
		SpeechBackend:          cfg.Backends.Speech,
		SessionStore:           cfg.Store.Backend,
		TTSCache:               clients.AudioCache != nil,
		AuthEnabled:            auth.Enabled(),
	}
}
