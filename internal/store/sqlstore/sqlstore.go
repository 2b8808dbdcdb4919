// Package sqlstore serves the session store from Postgres or SQLite through gorm.
package sqlstore

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/data/repos"
	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/dbctx"
	"github.com/everhighit/coach-api/internal/platform/logger"
	"github.com/everhighit/coach-api/internal/store"
)

type Store struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	turns    repos.TurnRepo
}

var _ store.SessionStore = (*Store)(nil)

func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{
		log:      log.With("service", "sqlstore.Store"),
		sessions: repos.NewSessionRepo(db, log),
		turns:    repos.NewTurnRepo(db, log),
	}
}

func (s *Store) CreateSession(ctx context.Context, row *lesson.Session) (*lesson.Session, error) {
	out, err := s.sessions.Create(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*lesson.Session, error) {
	out, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, classify(err)
	}
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (s *Store) UpdateSession(ctx context.Context, id uuid.UUID, patch store.SessionPatch) error {
	updates := map[string]interface{}{}
	if patch.StepIndex != nil {
		updates["step_index"] = *patch.StepIndex
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.AvgScore != nil {
		updates["avg_score"] = *patch.AvgScore
	}
	if len(updates) == 0 {
		return nil
	}
	n, err := s.sessions.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates)
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertTurn(ctx context.Context, t *lesson.Turn) error {
	if err := s.turns.Create(dbctx.Context{Ctx: ctx}, t); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) ListRecentTurns(ctx context.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error) {
	out, err := s.turns.ListRecentByLesson(dbctx.Context{Ctx: ctx}, lessonID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify separates connectivity failures from statements the database refused.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		return errors.Join(store.ErrUnreachable, err)
	default:
		return &store.RejectedError{Body: err.Error()}
	}
}
