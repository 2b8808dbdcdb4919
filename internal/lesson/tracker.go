package lesson

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	domain "github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/httpx"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/store"
)

const (
	DefaultPassThreshold = 0.75
	DefaultAverageWindow = 30
)

// Progress is the outcome of AdvanceOrComplete.
type Progress string

const (
	ProgressAdvanced  Progress = "advanced"
	ProgressCompleted Progress = "completed"
	ProgressActive    Progress = "active"
)

// Tracker persists sessions and turns and keeps the session's running average.
type Tracker struct {
	log           *logger.Logger
	store         store.SessionStore
	passThreshold float64
	window        int
}

func NewTracker(log *logger.Logger, st store.SessionStore, passThreshold float64, window int) *Tracker {
	if passThreshold <= 0 || passThreshold > 1 {
		passThreshold = DefaultPassThreshold
	}
	if window <= 0 {
		window = DefaultAverageWindow
	}
	return &Tracker{
		log:           log.With("service", "lesson.Tracker"),
		store:         st,
		passThreshold: passThreshold,
		window:        window,
	}
}

func (t *Tracker) Window() int { return t.window }

func (t *Tracker) CreateSession(ctx context.Context, userID uuid.UUID, topic, nativeLang, targetLang string) (uuid.UUID, error) {
	row, err := t.store.CreateSession(ctx, &domain.Session{
		UserID:     userID,
		Topic:      topic,
		NativeLang: nativeLang,
		TargetLang: targetLang,
		StepIndex:  0,
		Status:     domain.StatusActive,
	})
	if err != nil {
		return uuid.Nil, writeError("create session", err)
	}
	t.log.Info("lesson session created", "lesson_id", row.ID, "user_id", userID, "topic", topic)
	return row.ID, nil
}

func (t *Tracker) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	row, err := t.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, readError("get session", err)
	}
	return row, nil
}

func (t *Tracker) RecordTurn(ctx context.Context, sessionID uuid.UUID, stepIndex int, userText string, ev Evaluation) error {
	err := t.store.InsertTurn(ctx, &domain.Turn{
		LessonID:          sessionID,
		StepIndex:         stepIndex,
		UserText:          userText,
		TeacherFeedback:   ev.Feedback,
		CorrectedSentence: ev.Corrected,
		Score:             ev.Score,
		NeedRepeat:        ev.NeedRepeat,
	})
	if err != nil {
		return writeError("record turn", err)
	}
	return nil
}

// RecomputeAverage averages the newest window turns and writes it back onto the session.
// The read and the write are separate calls; concurrent turns on one session can leave a stale value.
func (t *Tracker) RecomputeAverage(ctx context.Context, sessionID uuid.UUID, window int) (float64, error) {
	if window <= 0 {
		window = t.window
	}
	turns, err := t.store.ListRecentTurns(ctx, sessionID, window)
	if err != nil {
		return 0, readError("list turns", err)
	}
	avg := Average(turns)
	if err := t.store.UpdateSession(ctx, sessionID, store.SessionPatch{AvgScore: &avg}); err != nil {
		return 0, writeError("update average", err)
	}
	return avg, nil
}

// Average is the mean score rounded to three decimals, or 0 when there are no turns.
func Average(turns []*domain.Turn) float64 {
	if len(turns) == 0 {
		return 0
	}
	var sum float64
	for _, tr := range turns {
		sum += tr.Score
	}
	return math.Round(sum/float64(len(turns))*1000) / 1000
}

// AdvanceOrComplete moves a non-final step forward, or closes the lesson when the average passes.
func (t *Tracker) AdvanceOrComplete(ctx context.Context, sessionID uuid.UUID, nextStepIndex int, isFinal bool, avg float64) (Progress, error) {
	if !isFinal {
		if err := t.store.UpdateSession(ctx, sessionID, store.SessionPatch{StepIndex: &nextStepIndex}); err != nil {
			return "", writeError("advance step", err)
		}
		return ProgressAdvanced, nil
	}
	if avg < t.passThreshold {
		return ProgressActive, nil
	}
	done := domain.StatusCompleted
	if err := t.store.UpdateSession(ctx, sessionID, store.SessionPatch{Status: &done}); err != nil {
		return "", writeError("complete session", err)
	}
	return ProgressCompleted, nil
}

// Finish marks the session completed whatever its progress.
func (t *Tracker) Finish(ctx context.Context, sessionID uuid.UUID) error {
	done := domain.StatusCompleted
	if err := t.store.UpdateSession(ctx, sessionID, store.SessionPatch{Status: &done}); err != nil {
		return writeError("finish session", err)
	}
	return nil
}

func writeError(op string, err error) error {
	if classified := storeError(op, err); classified != nil {
		return classified
	}
	return apierr.PersistenceFailed(httpx.StatusCode(err), fmt.Errorf("%s: %w", op, err))
}

func readError(op string, err error) error {
	if classified := storeError(op, err); classified != nil {
		return classified
	}
	return apierr.StoreRequestFailed(httpx.StatusCode(err), fmt.Errorf("%s: %w", op, err))
}

// storeError maps the store's sentinel errors; nil means the store rejected the call.
func storeError(op string, err error) error {
	if _, ok := apierr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotConfigured), errors.Is(err, store.ErrUnreachable):
		return apierr.SessionStoreUnavailable(fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, store.ErrNotFound):
		return apierr.SessionNotFound(fmt.Errorf("%s: %w", op, err))
	}
	return nil
}
