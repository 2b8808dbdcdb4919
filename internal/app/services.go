package app

import (
	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/lesson"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/services"
)

type Services struct {
	Voice   services.VoiceService
	Lessons *lesson.Service
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients) Services {
	log.Info("Wiring services...")

	// A nil *redis.AudioCache must not reach the interface as a typed nil.
	var cache services.AudioCache
	if clients.AudioCache != nil {
		cache = clients.AudioCache
	}

	tracker := lesson.NewTracker(log, clients.Store, cfg.Lesson.PassThreshold, cfg.Lesson.AverageWindow)
	evaluator := lesson.NewEvaluator(log, clients.Provider.Chat, cfg.Lesson.EvalTemperature)

	return Services{
		Voice:   services.NewVoiceService(log, clients.Provider, cache, cfg.Lesson.ChatTemperature),
		Lessons: lesson.NewService(log, tracker, evaluator, clients.Provider.Chat, cfg.Lesson.IntroTemperature),
	}
}
