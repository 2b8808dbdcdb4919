package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/everhighit/coach-api/internal/clients/redis"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
	"github.com/everhighit/coach-api/internal/speechtext"
)

const (
	DefaultVoice           = "alloy"
	DefaultFormat          = "mp3"
	DefaultChatTemperature = 0.5

	PaceNormal = "normal"
	PaceSlow   = "slow"
)

const correctionSystemPrompt = "You are a warm, human language coach. Speak naturally, like a friendly teacher.\n" +
	"Rules:\n" +
	"- Write a single short paragraph (2–4 sentences). No lists. No numbering. No headings.\n" +
	"- Explain in the student's NATIVE language.\n" +
	"- Include the corrected TARGET-language sentence inline (surrounded by quotes) and give a brief phonetic/intonation hint.\n" +
	"- Keep it concise and encouraging."

// AudioCache stores synthesized clips by key. Misses and errors both report false.
type AudioCache interface {
	Get(ctx context.Context, key string) (*provider.Audio, bool)
	Set(ctx context.Context, key string, audio *provider.Audio)
}

type TranscribeInput struct {
	Audio    []byte
	Filename string
	MimeType string
	Language string
}

type CorrectInput struct {
	Prompt     string
	NativeLang string
	TargetLang string
}

type SpeakInput struct {
	Text   string
	Voice  string
	Format string
	Pace   string
}

type VoiceService interface {
	Transcribe(ctx context.Context, in TranscribeInput) (string, error)
	Correct(ctx context.Context, in CorrectInput) (string, error)
	Speak(ctx context.Context, in SpeakInput) (*provider.Audio, error)
}

type voiceService struct {
	log             *logger.Logger
	provider        provider.Provider
	cache           AudioCache
	chatTemperature float64
}

// NewVoiceService wires the free-form voice endpoints. cache may be nil.
func NewVoiceService(log *logger.Logger, p provider.Provider, cache AudioCache, chatTemperature float64) VoiceService {
	if chatTemperature <= 0 {
		chatTemperature = DefaultChatTemperature
	}
	return &voiceService{
		log:             log.With("service", "VoiceService"),
		provider:        p,
		cache:           cache,
		chatTemperature: chatTemperature,
	}
}

func (s *voiceService) Transcribe(ctx context.Context, in TranscribeInput) (string, error) {
	if len(in.Audio) == 0 {
		return "", apierr.InvalidRequest(provider.ErrEmptyAudio)
	}
	req := provider.TranscriptionRequest{
		Audio:    in.Audio,
		Filename: strings.TrimSpace(in.Filename),
		MimeType: strings.TrimSpace(in.MimeType),
		Language: strings.TrimSpace(in.Language),
	}
	if req.Filename == "" {
		req.Filename = "audio.webm"
	}
	if req.MimeType == "" {
		req.MimeType = "audio/webm"
	}
	if req.Language == "" {
		req.Language = "en"
	}
	text, err := s.provider.Transcribe(ctx, req)
	if err != nil {
		if errors.Is(err, provider.ErrEmptyAudio) {
			return "", apierr.InvalidRequest(err)
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Correct returns a short spoken-style correction of the learner's sentence.
func (s *voiceService) Correct(ctx context.Context, in CorrectInput) (string, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return "", apierr.InvalidRequest(errors.New("prompt is required"))
	}
	native := defaultString(in.NativeLang, "es")
	target := defaultString(in.TargetLang, "en")

	raw, err := s.provider.CompleteChat(ctx, provider.ChatRequest{
		System:      correctionSystemPrompt,
		User:        fmt.Sprintf("NATIVE=%s; TARGET=%s; Student just said (in TARGET): %s", native, target, prompt),
		Temperature: s.chatTemperature,
	})
	if err != nil {
		return "", err
	}
	return speechtext.CleanForSpeech(raw), nil
}

func (s *voiceService) Speak(ctx context.Context, in SpeakInput) (*provider.Audio, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apierr.InvalidRequest(errors.New("text is required"))
	}
	voice := defaultString(in.Voice, DefaultVoice)
	format := strings.ToLower(defaultString(in.Format, DefaultFormat))
	// Any pace other than normal is spoken slowly.
	pace := strings.ToLower(defaultString(in.Pace, PaceNormal))
	if pace != PaceNormal {
		text = speechtext.PaceSlow(text)
	}

	key := redis.Key(voice, format, text)
	if s.cache != nil {
		if audio, ok := s.cache.Get(ctx, key); ok {
			return audio, nil
		}
	}

	audio, err := s.provider.SynthesizeSpeech(ctx, provider.SpeechRequest{Text: text, Voice: voice, Format: format})
	if err != nil {
		return nil, err
	}
	if audio.ContentType == "" {
		audio.ContentType = provider.ContentTypeForFormat(format)
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, audio)
	}
	return audio, nil
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
