package db

import (
	"gorm.io/gorm"

	"github.com/everhighit/coach-api/internal/domain/lesson"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&lesson.Session{},
		&lesson.Turn{},
	)
}
