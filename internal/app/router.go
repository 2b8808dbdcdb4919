package app

import (
	"github.com/gin-gonic/gin"

	"github.com/everhighit/coach-api/internal/config"
	httpapi "github.com/everhighit/coach-api/internal/http"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, h Handlers) *gin.Engine {
	log.Info("Wiring router...")
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORS.AllowOrigins,
		CORSOriginRegex: cfg.CORS.AllowOriginRegex,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		Metrics:         metrics,
		AuthMiddleware:  h.Auth,
		HealthHandler:   h.Health,
		VoiceHandler:    h.Voice,
		LessonHandler:   h.Lesson,
	})
}
