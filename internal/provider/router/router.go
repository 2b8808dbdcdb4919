// Package router picks a backend for each provider capability from config.
package router

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/everhighit/coach-api/internal/config"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
	"github.com/everhighit/coach-api/internal/provider/gcp"
	"github.com/everhighit/coach-api/internal/provider/mock"
	"github.com/everhighit/coach-api/internal/provider/openai"
)

type Router struct {
	provider.Provider

	// Chat is the backend behind CompleteChat, kept so callers can check provider.Ready on it.
	Chat provider.ChatCompleter

	// Backends names the backend serving each capability, reported by /envcheck.
	Backends map[string]string

	closers []io.Closer
}

func New(ctx context.Context, log *logger.Logger, cfg *config.Config, httpClient *http.Client) (*Router, error) {
	r := &Router{Backends: map[string]string{}}

	var oai *openai.Client
	openAI := func() *openai.Client {
		if oai == nil {
			oai = openai.New(log, openai.Config{
				APIKey:          cfg.OpenAI.APIKey,
				BaseURL:         cfg.OpenAI.BaseURL,
				ChatModel:       cfg.OpenAI.ChatModel,
				TranscribeModel: cfg.OpenAI.TranscribeModel,
				TTSModel:        cfg.OpenAI.TTSModel,
				Timeout:         cfg.OpenAI.Timeout.Duration,
			}, httpClient)
		}
		return oai
	}

	var chat provider.ChatCompleter
	switch cfg.Backends.LLM {
	case "mock":
		chat = mock.New()
	case "openai":
		chat = openAI()
	default:
		return nil, fmt.Errorf("unsupported llm backend %q", cfg.Backends.LLM)
	}
	r.Backends["chat"] = cfg.Backends.LLM

	var (
		stt provider.Transcriber
		tts provider.SpeechSynthesizer
	)
	switch cfg.Backends.Speech {
	case "mock":
		m := mock.New()
		stt, tts = m, m
	case "openai":
		o := openAI()
		stt, tts = o, o
	case "gcp":
		g, err := gcp.New(ctx, log, cfg.GCP.Credentials, cfg.GCP.Timeout.Duration)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, g)
		stt, tts = g, g
	default:
		return nil, fmt.Errorf("unsupported speech backend %q", cfg.Backends.Speech)
	}
	r.Backends["speech"] = cfg.Backends.Speech

	r.Chat = chat
	r.Provider = provider.Compose(stt, chat, tts)
	return r, nil
}

func (r *Router) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
