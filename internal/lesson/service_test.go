package lesson

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/everhighit/coach-api/internal/curriculum"
	"github.com/everhighit/coach-api/internal/data/repos/testutil"
	domain "github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/observability"
	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/provider"
	"github.com/everhighit/coach-api/internal/provider/mock"
	"github.com/everhighit/coach-api/internal/store"
)

func newService(t *testing.T, st store.SessionStore, chat provider.ChatCompleter) *Service {
	t.Helper()
	log := testutil.Logger(t)
	return NewService(log, NewTracker(log, st, 0.75, 30), NewEvaluator(log, chat, 0.4), chat, 0.6)
}

func restaurantStep(t *testing.T, i int) curriculum.Step {
	t.Helper()
	cur, err := curriculum.ForTopic("restaurant")
	if err != nil {
		t.Fatalf("ForTopic: %v", err)
	}
	s, ok := cur.StepAt(i)
	if !ok {
		t.Fatalf("no step %d", i)
	}
	return s
}

func TestStartThenTurn_AdvancesToNextStep(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	m := mock.New()
	m.Score, m.NeedRepeat = 0.9, false
	svc := newService(t, st, m)

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := restaurantStep(t, 0)
	if started.StepIndex != 0 || started.StepGoal != first.Goal || started.TeacherTextNative != first.RenderPrompt("") {
		t.Fatalf("start=%+v", started)
	}
	if started.IntroTextNative == "" {
		t.Fatalf("expected an intro from the mock backend")
	}

	res, err := svc.Turn(ctx, TurnInput{
		LessonID:   started.LessonID,
		StepIndex:  0,
		UserText:   "Buenas tardes, ¿tienen una mesa para dos?",
		NativeLang: "es",
		TargetLang: "en",
	})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !res.Advanced || res.LessonDone || res.NextStepIndex != 1 || res.Status != ProgressAdvanced {
		t.Fatalf("turn=%+v", res)
	}
	if res.NextTeacherTextNative != restaurantStep(t, 1).Prompt {
		t.Fatalf("next prompt=%q", res.NextTeacherTextNative)
	}
	if res.AverageScore != 0.9 {
		t.Fatalf("average=%v", res.AverageScore)
	}

	sess, err := st.GetSession(ctx, started.LessonID)
	if err != nil || sess.StepIndex != 1 || sess.Status != domain.StatusActive {
		t.Fatalf("stored session: %v %+v", err, sess)
	}
}

func TestStart_UnsupportedTopicTouchesNoStore(t *testing.T) {
	st := newSQLStore(t)
	svc := newService(t, st, mock.New())

	_, err := svc.Start(context.Background(), StartInput{UserID: uuid.New(), Topic: "airport", NativeLang: "es", TargetLang: "en"})
	if !apierr.HasCode(err, apierr.CodeUnsupportedTopic) {
		t.Fatalf("expected unsupported_topic, got %v", err)
	}
	if st.Calls("create") != 0 {
		t.Fatalf("store was called %d times", st.Calls("create"))
	}
}

func TestStart_IntroFailureLeavesEmptyIntro(t *testing.T) {
	st := newSQLStore(t)
	m := mock.New()
	m.ChatErr = errors.New("upstream down")
	svc := newService(t, st, m)

	res, err := svc.Start(context.Background(), StartInput{UserID: uuid.New(), Topic: "Restaurant ", NativeLang: "es", TargetLang: "en", StudentName: "Ana"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.IntroTextNative != "" || res.LessonID == uuid.Nil {
		t.Fatalf("start=%+v", res)
	}
	if res.TeacherTextNative != restaurantStep(t, 0).RenderPrompt("Ana") {
		t.Fatalf("prompt=%q", res.TeacherTextNative)
	}
}

func TestStart_StoreFailureFailsRequest(t *testing.T) {
	svc := newService(t, store.Unconfigured{}, mock.New())
	_, err := svc.Start(context.Background(), StartInput{UserID: uuid.New(), Topic: "restaurant"})
	if !apierr.HasCode(err, apierr.CodeSessionStoreUnavailable) {
		t.Fatalf("expected session_store_unavailable, got %v", err)
	}
}

func TestTurn_InvalidStepWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	m := mock.New()
	svc := newService(t, st, m)

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	writes := st.Writes()

	for _, step := range []int{-1, 4, 99} {
		_, err := svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: step, UserText: "hola"})
		if !apierr.HasCode(err, apierr.CodeInvalidStep) {
			t.Fatalf("step %d: expected invalid_step, got %v", step, err)
		}
	}
	if st.Writes() != writes {
		t.Fatalf("invalid step caused %d writes", st.Writes()-writes)
	}
}

func TestTurn_UnparseableEvaluationRepeats(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	svc := newService(t, st, replyWith("Muy bien, pero repite por favor."))

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: 0, UserText: "table two"})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if !res.NeedRepeat || res.Score != 0.5 || res.CorrectedSentence != "" || res.Advanced || res.NextStepIndex != 0 {
		t.Fatalf("turn=%+v", res)
	}

	turns, err := st.ListRecentTurns(ctx, started.LessonID, 30)
	if err != nil || len(turns) != 1 {
		t.Fatalf("turns: %v %d", err, len(turns))
	}
	if !turns[0].NeedRepeat || turns[0].Score != 0.5 || turns[0].CorrectedSentence != "" {
		t.Fatalf("stored turn=%+v", turns[0])
	}
}

func TestTurn_FinalStepCompletesOnlyAboveThreshold(t *testing.T) {
	ctx := context.Background()
	last := 3

	run := func(t *testing.T, score float64) (*TurnResult, *domain.Session) {
		st := newSQLStore(t)
		m := mock.New()
		m.Score, m.NeedRepeat = score, false
		svc := newService(t, st, m)

		started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := st.UpdateSession(ctx, started.LessonID, store.SessionPatch{StepIndex: &last}); err != nil {
			t.Fatalf("UpdateSession: %v", err)
		}
		res, err := svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: last, UserText: "The check, please."})
		if err != nil {
			t.Fatalf("Turn: %v", err)
		}
		sess, _ := st.GetSession(ctx, started.LessonID)
		return res, sess
	}

	t.Run("passing", func(t *testing.T) {
		res, sess := run(t, 0.9)
		if !res.LessonDone || res.Status != ProgressCompleted || res.Advanced || res.NextTeacherTextNative != "" {
			t.Fatalf("turn=%+v", res)
		}
		if sess.Status != domain.StatusCompleted || sess.StepIndex != last {
			t.Fatalf("session=%+v", sess)
		}
	})
	t.Run("below threshold", func(t *testing.T) {
		res, sess := run(t, 0.5)
		if res.LessonDone || res.Status != ProgressActive || res.NextStepIndex != last {
			t.Fatalf("turn=%+v", res)
		}
		if sess.Status != domain.StatusActive {
			t.Fatalf("session=%+v", sess)
		}
	})
}

func TestTurn_RejectsCompletedAndMismatchedSessions(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	svc := newService(t, st, mock.New())

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: 2, UserText: "hola"})
	if !apierr.HasCode(err, apierr.CodeStepMismatch) {
		t.Fatalf("expected step_mismatch, got %v", err)
	}

	if err := svc.Finish(ctx, started.LessonID, uuid.Nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, err = svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: 0, UserText: "hola"})
	if !apierr.HasCode(err, apierr.CodeSessionCompleted) {
		t.Fatalf("expected session_completed, got %v", err)
	}

	_, err = svc.Turn(ctx, TurnInput{LessonID: uuid.New(), StepIndex: 0, UserText: "hola"})
	if !apierr.HasCode(err, apierr.CodeSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestTurn_StepIndexNeverDecreases(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	m := mock.New()
	svc := newService(t, st, m)

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	prev := 0
	for i, repeat := range []bool{true, false, true, false, false, true, false} {
		m.NeedRepeat = repeat
		res, err := svc.Turn(ctx, TurnInput{LessonID: started.LessonID, StepIndex: prev, UserText: "sentence"})
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if res.NextStepIndex < prev {
			t.Fatalf("turn %d: step went from %d to %d", i, prev, res.NextStepIndex)
		}
		if res.LessonDone {
			break
		}
		prev = res.NextStepIndex
	}
	sess, _ := st.GetSession(ctx, started.LessonID)
	if sess.Status != domain.StatusCompleted {
		t.Fatalf("session=%+v", sess)
	}
}

func TestTurn_MissingChatCredentialsFailsFast(t *testing.T) {
	st := newSQLStore(t)
	svc := newService(t, st, nil)
	_, err := svc.Turn(context.Background(), TurnInput{LessonID: uuid.New(), StepIndex: 0, UserText: "hola"})
	if !apierr.HasCode(err, apierr.CodeConfigurationMissing) {
		t.Fatalf("expected configuration_missing, got %v", err)
	}
	if st.Calls("get") != 0 {
		t.Fatalf("store was read before the credential check")
	}
}

func TestTurnAndFinish_RejectOtherUsers(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	svc := newService(t, st, mock.New())

	owner, other := uuid.New(), uuid.New()
	started, err := svc.Start(ctx, StartInput{UserID: owner, Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = svc.Turn(ctx, TurnInput{LessonID: started.LessonID, ActorID: other, StepIndex: 0, UserText: "hola"})
	if !apierr.HasCode(err, apierr.CodeForbidden) {
		t.Fatalf("expected forbidden turn, got %v", err)
	}
	if err := svc.Finish(ctx, started.LessonID, other); !apierr.HasCode(err, apierr.CodeForbidden) {
		t.Fatalf("expected forbidden finish, got %v", err)
	}

	sess, err := st.GetSession(ctx, started.LessonID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != domain.StatusActive {
		t.Fatalf("status=%s, want active", sess.Status)
	}
	turns, err := st.ListRecentTurns(ctx, started.LessonID, 30)
	if err != nil || len(turns) != 0 {
		t.Fatalf("turns=%d err=%v", len(turns), err)
	}

	if _, err := svc.Turn(ctx, TurnInput{LessonID: started.LessonID, ActorID: owner, StepIndex: 0, UserText: "hola"}); err != nil {
		t.Fatalf("owner Turn: %v", err)
	}
	if err := svc.Finish(ctx, started.LessonID, owner); err != nil {
		t.Fatalf("owner Finish: %v", err)
	}
}

func TestFinish_UnknownLessonAndTopicLabel(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	m := observability.Init()
	if m == nil {
		t.Fatalf("metrics not enabled")
	}

	ctx := context.Background()
	svc := newService(t, newSQLStore(t), mock.New())

	if err := svc.Finish(ctx, uuid.New(), uuid.Nil); !apierr.HasCode(err, apierr.CodeSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}

	started, err := svc.Start(ctx, StartInput{UserID: uuid.New(), Topic: "restaurant", NativeLang: "es", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Finish(ctx, started.LessonID, uuid.Nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `coach_lesson_sessions_total{topic="restaurant",event="finished"}`) {
		t.Fatalf("finished sessions not labelled by topic:\n%s", body)
	}
	if strings.Contains(body, `topic="",event="finished"`) {
		t.Fatalf("finished session recorded without a topic:\n%s", body)
	}
}
