package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/everhighit/coach-api/internal/data/db"
	"github.com/everhighit/coach-api/internal/domain/lesson"
	"github.com/everhighit/coach-api/internal/platform/logger"
)

var dbSeq atomic.Int64

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens a private in-memory SQLite database with the lesson schema migrated.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, topic string) *lesson.Session {
	tb.Helper()
	s := &lesson.Session{
		UserID:     uuid.New(),
		Topic:      topic,
		NativeLang: "es",
		TargetLang: "en",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

// SeedTurns writes one turn per score, each a second newer than the last.
func SeedTurns(tb testing.TB, ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, scores ...float64) []*lesson.Turn {
	tb.Helper()
	base := time.Now().Add(-time.Hour)
	out := make([]*lesson.Turn, 0, len(scores))
	for i, sc := range scores {
		t := &lesson.Turn{
			LessonID:   lessonID,
			StepIndex:  0,
			UserText:   fmt.Sprintf("turn %d", i),
			Score:      sc,
			NeedRepeat: false,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := tx.WithContext(ctx).Create(t).Error; err != nil {
			tb.Fatalf("seed turn: %v", err)
		}
		out = append(out, t)
	}
	return out
}

func PtrInt(v int) *int { return &v }
