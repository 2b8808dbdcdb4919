// Package supabase serves the session store from Supabase's PostgREST endpoint.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/ctxutil"
	"github.com/everhighit/coach-api/internal/platform/httpx"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/store"
)

const (
	restPath      = "/rest/v1"
	sessionsTable = "lesson_sessions"
	turnsTable    = "lesson_turns"
)

type Client struct {
	log         *logger.Logger
	restURL     string
	serviceRole string
	httpClient  *http.Client
}

var _ store.SessionStore = (*Client)(nil)

func New(log *logger.Logger, baseURL, serviceRole string, httpClient *http.Client) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	serviceRole = strings.TrimSpace(serviceRole)
	if baseURL == "" || serviceRole == "" {
		return nil, store.ErrNotConfigured
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.DefaultClientConfig())
	}
	return &Client{
		log:         log.With("service", "supabase.Client"),
		restURL:     baseURL + restPath,
		serviceRole: serviceRole,
		httpClient:  httpClient,
	}, nil
}

type sessionInsert struct {
	UserID     uuid.UUID `json:"user_id"`
	Topic      string    `json:"topic"`
	NativeLang string    `json:"native_lang"`
	TargetLang string    `json:"target_lang"`
	StepIndex  int       `json:"step_index"`
	Status     string    `json:"status"`
}

type turnInsert struct {
	LessonID          uuid.UUID `json:"lesson_id"`
	StepIndex         int       `json:"step_index"`
	UserText          string    `json:"user_text"`
	TeacherFeedback   string    `json:"teacher_feedback"`
	CorrectedSentence string    `json:"corrected_sentence"`
	Score             float64   `json:"score"`
	NeedRepeat        bool      `json:"need_repeat"`
}

func (c *Client) CreateSession(ctx context.Context, s *lesson.Session) (*lesson.Session, error) {
	status := s.Status
	if status == "" {
		status = lesson.StatusActive
	}
	pc, rt := c.begin(ctx)
	raw, _, err := pc.From(sessionsTable).Insert(sessionInsert{
		UserID:     s.UserID,
		Topic:      s.Topic,
		NativeLang: s.NativeLang,
		TargetLang: s.TargetLang,
		StepIndex:  s.StepIndex,
		Status:     status,
	}, false, "", "representation", "").Execute()

	var rows []*sessionRow
	if err := c.finish(ctx, rt, http.MethodPost, sessionsTable, raw, err, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].ID == uuid.Nil {
		return nil, &store.RejectedError{StatusCode: rt.status, Body: "insert returned no representation"}
	}
	return rows[0].toSession(), nil
}

func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*lesson.Session, error) {
	pc, rt := c.begin(ctx)
	raw, _, err := pc.From(sessionsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()

	var rows []*sessionRow
	if err := c.finish(ctx, rt, http.MethodGet, sessionsTable, raw, err, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, store.ErrNotFound
	}
	return rows[0].toSession(), nil
}

func (c *Client) UpdateSession(ctx context.Context, id uuid.UUID, patch store.SessionPatch) error {
	body := map[string]any{}
	if patch.StepIndex != nil {
		body["step_index"] = *patch.StepIndex
	}
	if patch.Status != nil {
		body["status"] = *patch.Status
	}
	if patch.AvgScore != nil {
		body["avg_score"] = *patch.AvgScore
	}
	if len(body) == 0 {
		return nil
	}

	pc, rt := c.begin(ctx)
	raw, _, err := pc.From(sessionsTable).
		Update(body, "representation", "").
		Eq("id", id.String()).
		Execute()

	var rows []json.RawMessage
	if err := c.finish(ctx, rt, http.MethodPatch, sessionsTable, raw, err, &rows); err != nil {
		return err
	}
	// A decoded empty array means no row matched; 204 leaves rows nil.
	if rows != nil && len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) InsertTurn(ctx context.Context, t *lesson.Turn) error {
	pc, rt := c.begin(ctx)
	raw, _, err := pc.From(turnsTable).Insert(turnInsert{
		LessonID:          t.LessonID,
		StepIndex:         t.StepIndex,
		UserText:          t.UserText,
		TeacherFeedback:   t.TeacherFeedback,
		CorrectedSentence: t.CorrectedSentence,
		Score:             t.Score,
		NeedRepeat:        t.NeedRepeat,
	}, false, "", "representation", "").Execute()

	var rows []*turnRow
	if err := c.finish(ctx, rt, http.MethodPost, turnsTable, raw, err, &rows); err != nil {
		return err
	}
	if len(rows) > 0 && rows[0] != nil {
		t.ID = rows[0].ID
		t.CreatedAt = rows[0].CreatedAt.Time
	}
	return nil
}

func (c *Client) ListRecentTurns(ctx context.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error) {
	pc, rt := c.begin(ctx)
	q := pc.From(turnsTable).
		Select("*", "", false).
		Eq("lesson_id", lessonID.String()).
		Order("created_at", &postgrest.OrderOpts{Ascending: false})
	if limit > 0 {
		q = q.Limit(limit, "")
	}
	raw, _, err := q.Execute()

	var rows []*turnRow
	if err := c.finish(ctx, rt, http.MethodGet, turnsTable, raw, err, &rows); err != nil {
		return nil, err
	}
	out := make([]*lesson.Turn, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r.toTurn())
		}
	}
	return out, nil
}

// begin builds a PostgREST client for one call. The builder issues requests without a
// context and reports failures without their HTTP status, so the call's transport binds
// ctx to the request and keeps the status and error body for finish.
func (c *Client) begin(ctx context.Context) (*postgrest.Client, *call) {
	rt := &call{ctx: ctxutil.Default(ctx), next: c.httpClient}
	pc := postgrest.NewClient(c.restURL, "public", nil).
		SetApiKey(c.serviceRole).
		SetAuthToken(c.serviceRole)
	pc.Transport.Parent = rt
	return pc, rt
}

// finish classifies the outcome of one call and decodes the representation into out.
func (c *Client) finish(ctx context.Context, rt *call, method, table string, raw []byte, execErr error, out any) error {
	switch {
	case rt.err != nil:
		c.log.Warn("supabase request failed", "method", method, "table", table, "timeout", httpx.IsTimeout(rt.err), "error", rt.err)
		return errors.Join(store.ErrUnreachable, rt.err)
	case rt.status != 0 && (rt.status < 200 || rt.status >= 300):
		c.log.Warn("supabase rejected request", "method", method, "table", table, "status", rt.status, "request_id", ctxutil.RequestID(ctx))
		return &store.RejectedError{StatusCode: rt.status, Body: rt.body}
	case execErr != nil:
		return &store.RejectedError{StatusCode: rt.status, Body: execErr.Error()}
	}
	if out == nil || rt.status == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &store.RejectedError{StatusCode: rt.status, Body: "decode: " + err.Error()}
	}
	return nil
}

// call is the transport behind a single PostgREST request.
type call struct {
	ctx  context.Context
	next *http.Client

	status int
	body   string
	err    error
}

func (rt *call) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.next.Do(req.WithContext(rt.ctx))
	if err != nil {
		rt.err = err
		return nil, err
	}
	rt.status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		_ = resp.Body.Close()
		rt.body = strings.TrimSpace(string(b))
		resp.Body = io.NopCloser(bytes.NewReader(b))
	}
	return resp, nil
}
