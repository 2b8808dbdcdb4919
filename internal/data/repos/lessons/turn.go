package lessons

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/dbctx"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type TurnRepo interface {
	Create(dbc dbctx.Context, row *lesson.Turn) error
	ListRecentByLesson(dbc dbctx.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error)
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, baseLog *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: baseLog.With("repo", "TurnRepo")}
}

func (r *turnRepo) Create(dbc dbctx.Context, row *lesson.Turn) error {
	return dbc.DB(r.db).Create(row).Error
}

func (r *turnRepo) ListRecentByLesson(dbc dbctx.Context, lessonID uuid.UUID, limit int) ([]*lesson.Turn, error) {
	var out []*lesson.Turn
	q := dbc.DB(r.db).
		Where("lesson_id = ?", lessonID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
