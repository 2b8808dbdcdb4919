package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/everhighit/coach-api/internal/http/response"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/ctxutil"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/services"
)

type VoiceHandler struct {
	log   *logger.Logger
	voice services.VoiceService
}

func NewVoiceHandler(log *logger.Logger, voice services.VoiceService) *VoiceHandler {
	return &VoiceHandler{log: log.With("handler", "VoiceHandler"), voice: voice}
}

type chatRequest struct {
	Prompt         string `form:"prompt" json:"prompt" binding:"required"`
	NativeLanguage string `form:"native_language" json:"native_language"`
	TargetLanguage string `form:"target_language" json:"target_language"`
}

type ttsRequest struct {
	Text   string `form:"text" json:"text" binding:"required"`
	Voice  string `form:"voice" json:"voice"`
	Format string `form:"format" json:"format"`
	Pace   string `form:"pace" json:"pace"`
}

// POST /asr (multipart: audio, language)
func (h *VoiceHandler) ASR(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil {
		response.RespondError(c, apierr.InvalidRequest(fmt.Errorf("audio file is required: %w", err)))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}

	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	text, err := h.voice.Transcribe(ctx, services.TranscribeInput{
		Audio:    audio,
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Language: c.DefaultPostForm("language", "en"),
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"text": text})
}

// POST /chat
func (h *VoiceHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	text, err := h.voice.Correct(ctx, services.CorrectInput{
		Prompt:     req.Prompt,
		NativeLang: req.NativeLanguage,
		TargetLang: req.TargetLanguage,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"text": text})
}

// POST /tts; responds with the audio bytes.
func (h *VoiceHandler) TTS(c *gin.Context) {
	var req ttsRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	audio, err := h.voice.Speak(ctx, services.SpeakInput{
		Text:   req.Text,
		Voice:  req.Voice,
		Format: req.Format,
		Pace:   req.Pace,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if audio == nil {
		response.RespondError(c, errors.New("speech backend returned no audio"))
		return
	}
	c.Data(http.StatusOK, audio.ContentType, audio.Data)
}
