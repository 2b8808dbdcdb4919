package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/everhighit/coach-api/internal/http/middleware"
	"github.com/everhighit/coach-api/internal/http/response"
	"github.com/everhighit/coach-api/internal/lesson"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/ctxutil"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type LessonHandler struct {
	log     *logger.Logger
	lessons *lesson.Service
}

func NewLessonHandler(log *logger.Logger, lessons *lesson.Service) *LessonHandler {
	return &LessonHandler{log: log.With("handler", "LessonHandler"), lessons: lessons}
}

type startRequest struct {
	UserID         string `form:"user_id" json:"user_id" binding:"required"`
	NativeLanguage string `form:"native_language" json:"native_language" binding:"required"`
	TargetLanguage string `form:"target_language" json:"target_language" binding:"required"`
	Topic          string `form:"topic" json:"topic" binding:"required"`
	StudentName    string `form:"student_name" json:"student_name"`
}

type turnRequest struct {
	LessonID       string `form:"lesson_id" json:"lesson_id" binding:"required"`
	StepIndex      *int   `form:"step_index" json:"step_index" binding:"required"`
	UserText       string `form:"user_text" json:"user_text" binding:"required"`
	NativeLanguage string `form:"native_language" json:"native_language" binding:"required"`
	TargetLanguage string `form:"target_language" json:"target_language" binding:"required"`
}

type finishRequest struct {
	LessonID string `form:"lesson_id" json:"lesson_id" binding:"required"`
}

// POST /lesson/start
func (h *LessonHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if authUser, ok := middleware.AuthUserID(c); ok && authUser != userID {
		response.RespondError(c, apierr.Forbidden(errors.New("user_id does not match the access token")))
		return
	}

	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	res, err := h.lessons.Start(ctx, lesson.StartInput{
		UserID:      userID,
		Topic:       req.Topic,
		NativeLang:  strings.TrimSpace(req.NativeLanguage),
		TargetLang:  strings.TrimSpace(req.TargetLanguage),
		StudentName: req.StudentName,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /lesson/turn
func (h *LessonHandler) Turn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	lessonID, err := parseID("lesson_id", req.LessonID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	actorID, _ := middleware.AuthUserID(c)
	res, err := h.lessons.Turn(ctx, lesson.TurnInput{
		LessonID:   lessonID,
		ActorID:    actorID,
		StepIndex:  *req.StepIndex,
		UserText:   req.UserText,
		NativeLang: strings.TrimSpace(req.NativeLanguage),
		TargetLang: strings.TrimSpace(req.TargetLanguage),
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /lesson/finish
func (h *LessonHandler) Finish(c *gin.Context) {
	var req finishRequest
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, apierr.InvalidRequest(err))
		return
	}
	lessonID, err := parseID("lesson_id", req.LessonID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	ctx, cancel := ctxutil.Detached(c.Request.Context(), 0)
	defer cancel()
	actorID, _ := middleware.AuthUserID(c)
	if err := h.lessons.Finish(ctx, lessonID, actorID); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apierr.InvalidRequest(fmt.Errorf("%s must be a UUID", field))
	}
	return id, nil
}
