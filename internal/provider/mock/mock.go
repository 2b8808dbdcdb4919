// Package mock is an offline provider backend for local development and tests.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/everhighit/coach-api/internal/provider"
)

type Provider struct {
	// Score and NeedRepeat shape structured (JSON) chat replies.
	Score      float64
	NeedRepeat bool
	// ChatErr, when set, is returned by every CompleteChat call.
	ChatErr error

	mu    sync.Mutex
	chats []provider.ChatRequest
}

var _ provider.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{Score: 0.9}
}

// Chats returns the chat requests seen so far.
func (p *Provider) Chats() []provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]provider.ChatRequest(nil), p.chats...)
}

func (p *Provider) CompleteChat(ctx context.Context, req provider.ChatRequest) (string, error) {
	p.mu.Lock()
	p.chats = append(p.chats, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.ChatErr != nil {
		return "", p.ChatErr
	}
	if req.JSON {
		b, _ := json.Marshal(map[string]any{
			"teacher_feedback":   "mock: " + strings.TrimSpace(req.User),
			"corrected_sentence": `"` + lastQuoted(req.User) + `"`,
			"score":              p.Score,
			"need_repeat":        p.NeedRepeat,
		})
		return string(b), nil
	}
	if strings.TrimSpace(req.User) == "" {
		return "mock: ok", nil
	}
	return fmt.Sprintf("mock: %s", req.User), nil
}

func (p *Provider) Transcribe(ctx context.Context, req provider.TranscriptionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Audio) == 0 {
		return "", provider.ErrEmptyAudio
	}
	return fmt.Sprintf("mock transcript (%d bytes, lang=%s)", len(req.Audio), req.Language), nil
}

// SynthesizeSpeech returns a stable digest of the input so cache and handler tests can compare bytes.
func (p *Provider) SynthesizeSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.Audio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := sha256.Sum256([]byte(req.Voice + "\n" + req.Format + "\n" + req.Text))
	return &provider.Audio{Data: h[:], ContentType: provider.ContentTypeForFormat(req.Format)}, nil
}

func lastQuoted(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	return strings.Trim(s, `"`)
}
