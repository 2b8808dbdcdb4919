// Package lesson runs scripted conversation lessons: grading each learner turn,
// persisting progress, and walking the curriculum until the lesson completes.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/everhighit/coach-api/internal/curriculum"
	domain "github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
)

const DefaultIntroTemperature = 0.6

type StartInput struct {
	UserID      uuid.UUID
	Topic       string
	NativeLang  string
	TargetLang  string
	StudentName string
}

type StartResult struct {
	LessonID          uuid.UUID `json:"lesson_id"`
	StepIndex         int       `json:"step_index"`
	StepGoal          string    `json:"step_goal"`
	TeacherTextNative string    `json:"teacher_text_native"`
	IntroTextNative   string    `json:"intro_text_native"`
}

type TurnInput struct {
	LessonID uuid.UUID
	// ActorID is the authenticated caller; uuid.Nil when auth is off.
	ActorID    uuid.UUID
	StepIndex  int
	UserText   string
	NativeLang string
	TargetLang string
}

type TurnResult struct {
	TeacherFeedback       string   `json:"teacher_feedback"`
	CorrectedSentence     string   `json:"corrected_sentence"`
	Score                 float64  `json:"score"`
	NeedRepeat            bool     `json:"need_repeat"`
	Advanced              bool     `json:"advanced"`
	LessonDone            bool     `json:"lesson_done"`
	NextStepIndex         int      `json:"next_step_index"`
	NextTeacherTextNative string   `json:"next_teacher_text_native"`
	AverageScore          float64  `json:"average_score"`
	Status                Progress `json:"status"`
}

type Service struct {
	log              *logger.Logger
	tracker          *Tracker
	evaluator        *Evaluator
	chat             provider.ChatCompleter
	introTemperature float64
}

func NewService(log *logger.Logger, tracker *Tracker, evaluator *Evaluator, chat provider.ChatCompleter, introTemperature float64) *Service {
	if introTemperature <= 0 {
		introTemperature = DefaultIntroTemperature
	}
	return &Service{
		log:              log.With("service", "lesson.Service"),
		tracker:          tracker,
		evaluator:        evaluator,
		chat:             chat,
		introTemperature: introTemperature,
	}
}

// introOutcome is the result of the optional introduction call.
type introOutcome struct {
	text string
	err  error
}

func (o introOutcome) orDefault(def string) string {
	if o.err != nil || o.text == "" {
		return def
	}
	return o.text
}

// Start opens a session and returns the first step. The introduction is requested alongside
// session creation and never fails the call.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	cur, err := curriculum.ForTopic(in.Topic)
	if err != nil {
		return nil, apierr.UnsupportedTopic(err)
	}
	first, ok := cur.StepAt(0)
	if !ok {
		return nil, apierr.InvalidStep(fmt.Errorf("topic %q has no steps", cur.Topic()))
	}

	var (
		lessonID uuid.UUID
		intro    introOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := s.tracker.CreateSession(gctx, in.UserID, cur.Topic(), in.NativeLang, in.TargetLang)
		if err != nil {
			return err
		}
		lessonID = id
		return nil
	})
	g.Go(func() error {
		intro = s.introduce(gctx, cur.Topic(), in)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if intro.err != nil && !errors.Is(intro.err, context.Canceled) {
		s.log.Warn("lesson intro unavailable", "lesson_id", lessonID, "error", intro.err)
	}
	observability.Current().ObserveSession(cur.Topic(), "started")

	return &StartResult{
		LessonID:          lessonID,
		StepIndex:         first.Index,
		StepGoal:          first.Goal,
		TeacherTextNative: first.RenderPrompt(in.StudentName),
		IntroTextNative:   intro.orDefault(""),
	}, nil
}

func (s *Service) introduce(ctx context.Context, topic string, in StartInput) introOutcome {
	if !provider.Ready(s.chat) {
		return introOutcome{err: errors.New("chat provider not configured")}
	}
	name := strings.TrimSpace(in.StudentName)
	if name == "" {
		name = curriculum.DefaultLearnerName
	}
	text, err := s.chat.CompleteChat(ctx, provider.ChatRequest{
		System: "Eres una profesora amable. Da una breve consigna en el idioma NATIVO del alumno, " +
			"presenta el tema y termina con UNA pregunta para iniciar conversación. " +
			"Nada de bullets ni números.",
		User: fmt.Sprintf("Idioma nativo: %s. Idioma meta: %s. Tema: %s. Alumno: %s. "+
			"Produce 1–2 frases naturales en el idioma nativo, cerrando con una pregunta simple.",
			in.NativeLang, in.TargetLang, topic, name),
		Temperature: s.introTemperature,
	})
	return introOutcome{text: strings.TrimSpace(text), err: err}
}

// Turn grades one utterance for the session's current step and moves the session forward
// when the learner does not need to repeat it.
func (s *Service) Turn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if !provider.Ready(s.chat) {
		return nil, apierr.ConfigurationMissing(errors.New("chat provider credentials are not configured"))
	}
	sess, err := s.tracker.GetSession(ctx, in.LessonID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(sess, in.ActorID); err != nil {
		return nil, err
	}
	if sess.Completed() {
		return nil, apierr.SessionCompleted(fmt.Errorf("lesson %s is already completed", sess.ID))
	}
	cur, err := curriculum.ForTopic(sess.Topic)
	if err != nil {
		return nil, apierr.UnsupportedTopic(err)
	}
	step, ok := cur.StepAt(in.StepIndex)
	if !ok {
		return nil, apierr.InvalidStep(fmt.Errorf("step %d is outside topic %q (0..%d)", in.StepIndex, cur.Topic(), cur.Len()-1))
	}
	if in.StepIndex != sess.StepIndex {
		return nil, apierr.StepMismatch(fmt.Errorf("lesson is at step %d, got %d", sess.StepIndex, in.StepIndex))
	}

	ev, err := s.evaluator.Evaluate(ctx, EvaluationInput{
		NativeLang:     in.NativeLang,
		TargetLang:     in.TargetLang,
		StepGoal:       step.Goal,
		ExpectKeywords: step.ExpectKeywords,
		UserText:       in.UserText,
	})
	if err != nil {
		return nil, err
	}
	if err := s.tracker.RecordTurn(ctx, sess.ID, step.Index, in.UserText, ev); err != nil {
		return nil, err
	}
	avg, err := s.tracker.RecomputeAverage(ctx, sess.ID, s.tracker.Window())
	if err != nil {
		return nil, err
	}

	out := &TurnResult{
		TeacherFeedback:   ev.Feedback,
		CorrectedSentence: ev.Corrected,
		Score:             ev.Score,
		NeedRepeat:        ev.NeedRepeat,
		NextStepIndex:     step.Index,
		AverageScore:      avg,
		Status:            ProgressActive,
	}
	if ev.NeedRepeat {
		observability.Current().ObserveTurn(cur.Topic(), "repeat")
		return out, nil
	}

	final := cur.IsFinal(step.Index)
	next := step.Index + 1
	progress, err := s.tracker.AdvanceOrComplete(ctx, sess.ID, next, final, avg)
	if err != nil {
		return nil, err
	}
	out.Status = progress
	switch progress {
	case ProgressAdvanced:
		out.Advanced = true
		out.NextStepIndex = next
		if nextStep, ok := cur.StepAt(next); ok {
			out.NextTeacherTextNative = nextStep.RenderPrompt("")
		}
		observability.Current().ObserveTurn(cur.Topic(), "advanced")
	case ProgressCompleted:
		out.LessonDone = true
		observability.Current().ObserveTurn(cur.Topic(), "completed")
		observability.Current().ObserveSession(cur.Topic(), "completed")
	default:
		observability.Current().ObserveTurn(cur.Topic(), "below_threshold")
	}
	s.log.Debug("lesson turn graded", "lesson_id", sess.ID, "step", step.Index, "score", ev.Score, "avg", avg, "status", string(progress))
	return out, nil
}

// Finish closes the session early. actorID is the authenticated caller, or uuid.Nil when auth is off.
func (s *Service) Finish(ctx context.Context, lessonID, actorID uuid.UUID) error {
	sess, err := s.tracker.GetSession(ctx, lessonID)
	if err != nil {
		return err
	}
	if err := checkOwner(sess, actorID); err != nil {
		return err
	}
	if err := s.tracker.Finish(ctx, sess.ID); err != nil {
		return err
	}
	observability.Current().ObserveSession(sess.Topic, "finished")
	return nil
}

func checkOwner(sess *domain.Session, actorID uuid.UUID) error {
	if actorID == uuid.Nil || sess.UserID == actorID {
		return nil
	}
	return apierr.Forbidden(fmt.Errorf("lesson %s belongs to another user", sess.ID))
}
