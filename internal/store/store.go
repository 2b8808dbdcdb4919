// Package store defines the session store contract shared by the Supabase and SQL backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/observability"
)

var (
	ErrNotFound      = errors.New("session store: not found")
	ErrNotConfigured = errors.New("session store: not configured")
	ErrUnreachable   = errors.New("session store: unreachable")
)

// RejectedError is a store answer other than success: a non-2xx status or a failed statement.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	if e.StatusCode == 0 {
		return "session store rejected request: " + e.Body
	}
	return fmt.Sprintf("session store rejected request: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *RejectedError) HTTPStatusCode() int { return e.StatusCode }

// SessionPatch carries the columns a turn or finish may change. Nil fields are left alone.
type SessionPatch struct {
	StepIndex *int
	Status    *string
	AvgScore  *float64
}

func (p SessionPatch) Empty() bool {
	return p.StepIndex == nil && p.Status == nil && p.AvgScore == nil
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *lesson.Session) (*lesson.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*lesson.Session, error)
	UpdateSession(ctx context.Context, id uuid.UUID, patch SessionPatch) error
	InsertTurn(ctx context.Context, t *lesson.Turn) error
	// ListRecentTurns returns at most limit turns, newest first.
	ListRecentTurns(ctx context.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error)
}

// Unconfigured fails every call with ErrNotConfigured. It stands in when credentials are absent
// so the process still starts and reports the gap per request.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) err() error {
	if u.Reason == "" {
		return ErrNotConfigured
	}
	return fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
}

func (u Unconfigured) CreateSession(context.Context, *lesson.Session) (*lesson.Session, error) {
	return nil, u.err()
}
func (u Unconfigured) GetSession(context.Context, uuid.UUID) (*lesson.Session, error) {
	return nil, u.err()
}
func (u Unconfigured) UpdateSession(context.Context, uuid.UUID, SessionPatch) error { return u.err() }
func (u Unconfigured) InsertTurn(context.Context, *lesson.Turn) error               { return u.err() }
func (u Unconfigured) ListRecentTurns(context.Context, uuid.UUID, int) ([]*lesson.Turn, error) {
	return nil, u.err()
}

// WithTimeout bounds every call on next by d.
func WithTimeout(next SessionStore, d time.Duration) SessionStore {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, d: d}
}

type timeoutStore struct {
	next SessionStore
	d    time.Duration
}

func (s *timeoutStore) CreateSession(ctx context.Context, row *lesson.Session) (*lesson.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.CreateSession(ctx, row)
}

func (s *timeoutStore) GetSession(ctx context.Context, id uuid.UUID) (*lesson.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.GetSession(ctx, id)
}

func (s *timeoutStore) UpdateSession(ctx context.Context, id uuid.UUID, patch SessionPatch) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.UpdateSession(ctx, id, patch)
}

func (s *timeoutStore) InsertTurn(ctx context.Context, t *lesson.Turn) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.InsertTurn(ctx, t)
}

func (s *timeoutStore) ListRecentTurns(ctx context.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return s.next.ListRecentTurns(ctx, lessonID, limit)
}

// Instrument counts calls per backend and operation.
func Instrument(next SessionStore, backend string) SessionStore {
	return &instrumented{next: next, backend: backend}
}

type instrumented struct {
	next    SessionStore
	backend string
}

func (s *instrumented) CreateSession(ctx context.Context, row *lesson.Session) (*lesson.Session, error) {
	out, err := s.next.CreateSession(ctx, row)
	observability.Current().ObserveStore(s.backend, "create_session", err)
	return out, err
}

func (s *instrumented) GetSession(ctx context.Context, id uuid.UUID) (*lesson.Session, error) {
	out, err := s.next.GetSession(ctx, id)
	observability.Current().ObserveStore(s.backend, "get_session", err)
	return out, err
}

func (s *instrumented) UpdateSession(ctx context.Context, id uuid.UUID, patch SessionPatch) error {
	err := s.next.UpdateSession(ctx, id, patch)
	observability.Current().ObserveStore(s.backend, "update_session", err)
	return err
}

func (s *instrumented) InsertTurn(ctx context.Context, t *lesson.Turn) error {
	err := s.next.InsertTurn(ctx, t)
	observability.Current().ObserveStore(s.backend, "insert_turn", err)
	return err
}

func (s *instrumented) ListRecentTurns(ctx context.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error) {
	out, err := s.next.ListRecentTurns(ctx, lessonID, limit)
	observability.Current().ObserveStore(s.backend, "list_turns", err)
	return out, err
}
