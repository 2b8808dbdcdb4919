package repos

import (
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/data/repos/lessons"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

type SessionRepo = lessons.SessionRepo
type TurnRepo = lessons.TurnRepo

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return lessons.NewSessionRepo(db, baseLog)
}
func NewTurnRepo(db *gorm.DB, baseLog *logger.Logger) TurnRepo {
	return lessons.NewTurnRepo(db, baseLog)
}
