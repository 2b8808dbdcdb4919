package lesson

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
	"github.com/everhighit/coach-api/internal/provider/mock"
)

type chatFunc func(ctx context.Context, req provider.ChatRequest) (string, error)

func (f chatFunc) CompleteChat(ctx context.Context, req provider.ChatRequest) (string, error) {
	return f(ctx, req)
}

func replyWith(text string) chatFunc {
	return func(context.Context, provider.ChatRequest) (string, error) { return text, nil }
}

func TestEvaluate_StructuredReply(t *testing.T) {
	m := mock.New()
	m.Score = 0.9
	e := NewEvaluator(logger.Nop(), m, 0)

	ev, err := e.Evaluate(context.Background(), EvaluationInput{
		NativeLang:     "es",
		TargetLang:     "en",
		StepGoal:       "Pedir bebida",
		ExpectKeywords: []string{"agua", "por favor"},
		UserText:       "Water please",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Score != 0.9 || ev.NeedRepeat || ev.Fallback || ev.Feedback == "" {
		t.Fatalf("evaluation=%+v", ev)
	}

	chats := m.Chats()
	if len(chats) != 1 {
		t.Fatalf("chats=%d", len(chats))
	}
	req := chats[0]
	if !req.JSON || req.Temperature != DefaultEvalTemperature || req.User != "Water please" {
		t.Fatalf("request=%+v", req)
	}
	for _, want := range []string{"STEP_GOAL=Pedir bebida", `EXPECT_KEYWORDS=["agua", "por favor"]`, "NATIVE=es; TARGET=en"} {
		if !strings.Contains(req.System, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, req.System)
		}
	}
}

func TestParseEvaluation(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		want     Evaluation
		parsedOK bool
	}{
		{
			name:     "plain object",
			raw:      `{"teacher_feedback":"Muy bien","corrected_sentence":"\"A table for two, please.\"","score":0.8,"need_repeat":false}`,
			want:     Evaluation{Feedback: "Muy bien", Corrected: `"A table for two, please."`, Score: 0.8},
			parsedOK: true,
		},
		{
			name:     "fenced",
			raw:      "```json\n{\"teacher_feedback\":\"Bien\",\"score\":1,\"need_repeat\":false}\n```",
			want:     Evaluation{Feedback: "Bien", Score: 1},
			parsedOK: true,
		},
		{
			name:     "score out of range and need_repeat missing",
			raw:      `{"teacher_feedback":"x","score":7}`,
			want:     Evaluation{Feedback: "x", Score: 0.5, NeedRepeat: true},
			parsedOK: true,
		},
		{
			name:     "score not numeric",
			raw:      `{"teacher_feedback":"x","score":"high","need_repeat":"no"}`,
			want:     Evaluation{Feedback: "x", Score: 0.5, NeedRepeat: true},
			parsedOK: true,
		},
		{
			name:     "score null",
			raw:      `{"score":null,"need_repeat":false}`,
			want:     Evaluation{Score: 0.5},
			parsedOK: true,
		},
		{
			name: "prose",
			raw:  "  Casi perfecto, intenta otra vez.  ",
			want: Evaluation{Feedback: "Casi perfecto, intenta otra vez.", Score: 0.5, NeedRepeat: true, Fallback: true},
		},
		{
			name: "array",
			raw:  `[1,2]`,
			want: Evaluation{Feedback: "[1,2]", Score: 0.5, NeedRepeat: true, Fallback: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseEvaluation(tc.raw)
			if ok != tc.parsedOK {
				t.Fatalf("ok=%v want %v", ok, tc.parsedOK)
			}
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_UnparseableReplyIsNotAnError(t *testing.T) {
	e := NewEvaluator(logger.Nop(), replyWith("Intenta de nuevo, por favor."), 0.4)
	ev, err := e.Evaluate(context.Background(), EvaluationInput{UserText: "hi"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.Fallback || !ev.NeedRepeat || ev.Score != 0.5 || ev.Corrected != "" || ev.Feedback != "Intenta de nuevo, por favor." {
		t.Fatalf("evaluation=%+v", ev)
	}
}

func TestEvaluate_ProviderFailureSurfaces(t *testing.T) {
	upstream := apierr.ProviderRequestFailed(429, errors.New("rate limited"))
	m := mock.New()
	m.ChatErr = upstream
	e := NewEvaluator(logger.Nop(), m, 0.4)

	_, err := e.Evaluate(context.Background(), EvaluationInput{UserText: "hi"})
	if !apierr.HasCode(err, apierr.CodeProviderRequestFailed) {
		t.Fatalf("expected provider_request_failed, got %v", err)
	}
}

func TestEvaluate_NoChatBackend(t *testing.T) {
	e := NewEvaluator(logger.Nop(), nil, 0.4)
	_, err := e.Evaluate(context.Background(), EvaluationInput{UserText: "hi"})
	if !apierr.HasCode(err, apierr.CodeConfigurationMissing) {
		t.Fatalf("expected configuration_missing, got %v", err)
	}
}

func TestStripFence(t *testing.T) {
	cases := map[string]string{
		"{}":                  "{}",
		"```json\n{}\n```":    "{}",
		"```\n{\"a\":1}\n```": `{"a":1}`,
		"```json{}```":        "{}",
	}
	for in, want := range cases {
		if got := stripFence(in); got != want {
			t.Fatalf("stripFence(%q)=%q want %q", in, got, want)
		}
	}
}
