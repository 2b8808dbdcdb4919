package lessons

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/dbctx"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, row *lesson.Session) (*lesson.Session, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*lesson.Session, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *lesson.Session) (*lesson.Session, error) {
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// GetByID returns (nil, nil) when no row matches.
func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*lesson.Session, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out lesson.Session
	err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Model(&lesson.Session{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected, res.Error
}
