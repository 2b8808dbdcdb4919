package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/everhighit/coach-api/internal/platform/apierr"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/provider"
)

const (
	// DefaultEvalTemperature keeps grading close to deterministic.
	DefaultEvalTemperature = 0.4
	fallbackScore          = 0.5
)

type EvaluationInput struct {
	NativeLang     string
	TargetLang     string
	StepGoal       string
	ExpectKeywords []string
	UserText       string
}

type Evaluation struct {
	Feedback   string
	Corrected  string
	Score      float64
	NeedRepeat bool
	// Fallback is set when the reply could not be parsed and the raw text became the feedback.
	Fallback bool
}

type Evaluator struct {
	log         *logger.Logger
	chat        provider.ChatCompleter
	temperature float64
}

func NewEvaluator(log *logger.Logger, chat provider.ChatCompleter, temperature float64) *Evaluator {
	if temperature <= 0 {
		temperature = DefaultEvalTemperature
	}
	return &Evaluator{
		log:         log.With("service", "lesson.Evaluator"),
		chat:        chat,
		temperature: temperature,
	}
}

// Evaluate grades one utterance. Provider failures are returned; an unparseable reply is not.
func (e *Evaluator) Evaluate(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	if !provider.Ready(e.chat) {
		return Evaluation{}, apierr.ConfigurationMissing(errors.New("chat provider credentials are not configured"))
	}
	raw, err := e.chat.CompleteChat(ctx, provider.ChatRequest{
		System:      coachPrompt(in.NativeLang, in.TargetLang, in.StepGoal, in.ExpectKeywords),
		User:        in.UserText,
		Temperature: e.temperature,
		JSON:        true,
	})
	if err != nil {
		return Evaluation{}, err
	}
	ev, ok := parseEvaluation(raw)
	if !ok {
		e.log.Warn("evaluation reply was not structured, asking for a repeat", "reply_len", len(raw))
	}
	return ev, nil
}

func coachPrompt(native, target, goal string, keywords []string) string {
	var b strings.Builder
	b.WriteString("You are a warm language teacher. You will: (1) evaluate the student's TARGET-language utterance, ")
	b.WriteString(" (2) respond in the student's NATIVE language with a short, natural paragraph (no lists), ")
	b.WriteString(" (3) include one corrected TARGET sentence in quotes, and (4) return a JSON control block.\n\n")
	b.WriteString("Return a JSON object with keys: teacher_feedback, corrected_sentence, score, need_repeat.\n")
	b.WriteString("- teacher_feedback: short paragraph in NATIVE.\n")
	b.WriteString("- corrected_sentence: one concise sentence in TARGET, quoted.\n")
	b.WriteString("- score: 0.0–1.0 based on how well they achieved the goal.\n")
	b.WriteString("- need_repeat: true if they should try again; false if they can move on.\n\n")
	fmt.Fprintf(&b, "Context:\nNATIVE=%s; TARGET=%s; STEP_GOAL=%s; EXPECT_KEYWORDS=%s.\n", native, target, goal, keywordList(keywords))
	b.WriteString("Be strict but kind. If key info is missing, set need_repeat=true.\n")
	return b.String()
}

func keywordList(keywords []string) string {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = strconv.Quote(k)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// parseEvaluation reports false when raw is not a JSON object; the result is then the fallback.
func parseEvaluation(raw string) (Evaluation, bool) {
	fallback := Evaluation{
		Feedback:   strings.TrimSpace(raw),
		Score:      fallbackScore,
		NeedRepeat: true,
		Fallback:   true,
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(raw)), &fields); err != nil || fields == nil {
		return fallback, false
	}

	ev := Evaluation{
		Feedback:   stringField(fields["teacher_feedback"]),
		Corrected:  stringField(fields["corrected_sentence"]),
		Score:      scoreField(fields["score"]),
		NeedRepeat: true,
	}
	if v, ok := fields["need_repeat"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			ev.NeedRepeat = b
		}
	}
	return ev, true
}

// stripFence removes a ```json ... ``` wrapper some models add despite JSON mode.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func stringField(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func scoreField(v json.RawMessage) float64 {
	if len(v) == 0 || string(v) == "null" {
		return fallbackScore
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return fallbackScore
	}
	if f < 0 || f > 1 {
		return fallbackScore
	}
	return f
}
