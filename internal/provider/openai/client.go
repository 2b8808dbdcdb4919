package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/ctxutil"
	"github.com/everhighit/coach-api/internal/platform/httpx"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
)

type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
	TTSModel        string
	Timeout         time.Duration
}

// Client talks to an OpenAI-compatible API. It makes exactly one attempt per call.
type Client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

var _ provider.Provider = (*Client)(nil)

func New(log *logger.Logger, cfg Config, httpClient *http.Client) *Client {
	if log == nil {
		log = logger.Nop()
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "gpt-4o-mini-tts"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.DefaultClientConfig())
	}
	return &Client{
		log:        log.With("service", "openai.Client"),
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.cfg.APIKey != "" }

// ---------------- Chat completions ----------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) CompleteChat(ctx context.Context, req provider.ChatRequest) (string, error) {
	body := chatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Temperature: req.Temperature,
	}
	if s := strings.TrimSpace(req.System); s != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: s})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})
	if req.JSON {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	var out chatCompletionResponse
	raw, _, err := c.do(ctx, "chat", "/chat/completions", "application/json", payload)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apierr.ProviderRequestFailed(0, fmt.Errorf("openai decode chat response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", apierr.ProviderRequestFailed(0, errors.New("openai chat response has no choices"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// ---------------- Transcriptions ----------------

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) Transcribe(ctx context.Context, req provider.TranscriptionRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", apierr.InvalidRequest(provider.ErrEmptyAudio)
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = "audio.webm"
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("model", c.cfg.TranscribeModel)
	if lang := strings.TrimSpace(req.Language); lang != "" {
		_ = w.WriteField("language", lang)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	raw, _, err := c.do(ctx, "transcribe", "/audio/transcriptions", w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	var out transcriptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apierr.ProviderRequestFailed(0, fmt.Errorf("openai decode transcription: %w", err))
	}
	return strings.TrimSpace(out.Text), nil
}

// ---------------- Speech ----------------

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (c *Client) SynthesizeSpeech(ctx context.Context, req provider.SpeechRequest) (*provider.Audio, error) {
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = "alloy"
	}
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "mp3"
	}
	payload, err := json.Marshal(speechRequest{
		Model:          c.cfg.TTSModel,
		Voice:          voice,
		Input:          req.Text,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, err
	}

	raw, _, err := c.do(ctx, "speech", "/audio/speech", "application/json", payload)
	if err != nil {
		return nil, err
	}
	return &provider.Audio{Data: raw, ContentType: provider.ContentTypeForFormat(format)}, nil
}

// ---------------- HTTP helpers ----------------

// do performs one bounded request. Failures come back as *apierr.Error so callers can
// surface the upstream status unchanged.
func (c *Client) do(ctx context.Context, op, path, contentType string, payload []byte) ([]byte, http.Header, error) {
	if !c.Configured() {
		return nil, nil, apierr.ConfigurationMissing(errors.New("OPENAI_API_KEY is not set"))
	}

	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, hdr, err := c.doOnce(ctx, path, contentType, payload)
	observability.Current().ObserveProvider("openai", op, err, time.Since(start))
	if err != nil {
		c.log.Warn("openai request failed",
			"op", op,
			"status", httpx.StatusCode(err),
			"timeout", httpx.IsTimeout(err),
			"request_id", ctxutil.RequestID(ctx),
			"error", err,
		)
		return nil, nil, apierr.ProviderRequestFailed(httpx.StatusCode(err), err)
	}
	return raw, hdr, nil
}

func (c *Client) doOnce(ctx context.Context, path, contentType string, payload []byte) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, &HTTPError{StatusCode: resp.StatusCode, Body: httpx.ReadBody(resp.Body)}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, err
	}
	return raw, resp.Header, nil
}
