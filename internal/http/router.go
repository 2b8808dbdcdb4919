package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/everhighit/coach-api/internal/http/handlers"
	httpMW "github.com/everhighit/coach-api/internal/http/middleware"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string

	CORSOrigins     []string
	CORSOriginRegex string
	MaxRequestBytes int64

	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler *httpH.HealthHandler
	VoiceHandler  *httpH.VoiceHandler
	LessonHandler *httpH.LessonHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins, cfg.CORSOriginRegex))
	r.Use(httpMW.MaxBody(cfg.MaxRequestBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
		r.GET("/envcheck", cfg.HealthHandler.EnvCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Voice
	if cfg.VoiceHandler != nil {
		r.POST("/asr", cfg.VoiceHandler.ASR)
		r.POST("/chat", cfg.VoiceHandler.Chat)
		r.POST("/tts", cfg.VoiceHandler.TTS)
	}

	// Lesson
	if cfg.LessonHandler != nil {
		lessons := r.Group("/lesson")
		if cfg.AuthMiddleware != nil {
			lessons.Use(cfg.AuthMiddleware.RequireAuth())
		}
		lessons.POST("/start", cfg.LessonHandler.Start)
		lessons.POST("/turn", cfg.LessonHandler.Turn)
		lessons.POST("/finish", cfg.LessonHandler.Finish)
	}

	return r
}
