// Package provider defines the language model provider contracts consumed by the lesson
// flow and the voice endpoints, and selects a backend per capability from config.
package provider

import (
	"context"
	"errors"
	"strings"
)

type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	// JSON asks the backend for a single JSON object response.
	JSON bool
}

type TranscriptionRequest struct {
	Audio    []byte
	Filename string
	MimeType string
	// Language is a hint such as "en" or "es-ES"; empty lets the backend detect.
	Language string
}

type SpeechRequest struct {
	Text   string
	Voice  string
	Format string
}

type Audio struct {
	Data        []byte
	ContentType string
}

type Transcriber interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

type ChatCompleter interface {
	CompleteChat(ctx context.Context, req ChatRequest) (string, error)
}

type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*Audio, error)
}

// Provider bundles the three capabilities. Each may be served by a different backend.
type Provider interface {
	Transcriber
	ChatCompleter
	SpeechSynthesizer
}

var ErrEmptyAudio = errors.New("audio payload is empty")

// Configurable is implemented by backends that need credentials before their first call.
type Configurable interface {
	Configured() bool
}

// Ready reports whether backend can serve a call. Backends without credentials are always ready.
func Ready(backend any) bool {
	if backend == nil {
		return false
	}
	if c, ok := backend.(Configurable); ok {
		return c.Configured()
	}
	return true
}

type composite struct {
	Transcriber
	ChatCompleter
	SpeechSynthesizer
}

// Compose returns a Provider that routes each capability to its own backend.
func Compose(t Transcriber, c ChatCompleter, s SpeechSynthesizer) Provider {
	return composite{Transcriber: t, ChatCompleter: c, SpeechSynthesizer: s}
}

// ContentTypeForFormat maps an audio format name to its MIME type.
func ContentTypeForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/wav"
	}
}
