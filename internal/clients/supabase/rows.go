package supabase

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/everhighit/coach-api/internal/domain/lesson"
)

// PostgREST renders timestamptz with an offset and plain timestamp without one, and uses a
// space instead of T when the column is cast to text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// timestamp decodes any of the layouts above. Zone-less values are read as UTC; null, empty
// and unrecognised values decode to the zero time instead of failing the whole row.
type timestamp struct{ time.Time }

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		ts.Time = time.Time{}
		return nil
	}
	ts.Time = parseTimestamp(raw)
	return nil
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type sessionRow struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Topic      string    `json:"topic"`
	NativeLang string    `json:"native_lang"`
	TargetLang string    `json:"target_lang"`
	StepIndex  int       `json:"step_index"`
	Status     string    `json:"status"`
	AvgScore   *float64  `json:"avg_score"`
	CreatedAt  timestamp `json:"created_at"`
	UpdatedAt  timestamp `json:"updated_at"`
}

func (r *sessionRow) toSession() *lesson.Session {
	out := &lesson.Session{
		ID:         r.ID,
		UserID:     r.UserID,
		Topic:      r.Topic,
		NativeLang: r.NativeLang,
		TargetLang: r.TargetLang,
		StepIndex:  r.StepIndex,
		Status:     r.Status,
		AvgScore:   r.AvgScore,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
	if out.Status == "" {
		out.Status = lesson.StatusActive
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	return out
}

type turnRow struct {
	ID                uuid.UUID `json:"id"`
	LessonID          uuid.UUID `json:"lesson_id"`
	StepIndex         int       `json:"step_index"`
	UserText          string    `json:"user_text"`
	TeacherFeedback   string    `json:"teacher_feedback"`
	CorrectedSentence string    `json:"corrected_sentence"`
	Score             float64   `json:"score"`
	NeedRepeat        bool      `json:"need_repeat"`
	CreatedAt         timestamp `json:"created_at"`
}

func (r *turnRow) toTurn() *lesson.Turn {
	return &lesson.Turn{
		ID:                r.ID,
		LessonID:          r.LessonID,
		StepIndex:         r.StepIndex,
		UserText:          r.UserText,
		TeacherFeedback:   r.TeacherFeedback,
		CorrectedSentence: r.CorrectedSentence,
		Score:             r.Score,
		NeedRepeat:        r.NeedRepeat,
		CreatedAt:         r.CreatedAt.Time,
	}
}
