package lesson

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Session is one learner's run through a topic. Rows are never deleted.
type Session struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`

	Topic      string `gorm:"column:topic;not null" json:"topic"`
	NativeLang string `gorm:"column:native_lang;not null" json:"native_lang"`
	TargetLang string `gorm:"column:target_lang;not null" json:"target_lang"`

	StepIndex int      `gorm:"column:step_index;not null;default:0" json:"step_index"`
	Status    string   `gorm:"column:status;not null;default:'active';index" json:"status"`
	AvgScore  *float64 `gorm:"column:avg_score" json:"avg_score"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "lesson_sessions" }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return nil
}

// Completed treats a missing status as active; older rows predate the column default.
func (s *Session) Completed() bool {
	return s != nil && s.Status == StatusCompleted
}

// Turn is one learner utterance and its evaluation. Immutable once written.
type Turn struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID uuid.UUID `gorm:"type:uuid;column:lesson_id;not null;index:idx_lesson_turns_lesson_created,priority:1" json:"lesson_id"`

	StepIndex         int     `gorm:"column:step_index;not null" json:"step_index"`
	UserText          string  `gorm:"column:user_text;type:text;not null" json:"user_text"`
	TeacherFeedback   string  `gorm:"column:teacher_feedback;type:text" json:"teacher_feedback"`
	CorrectedSentence string  `gorm:"column:corrected_sentence;type:text" json:"corrected_sentence"`
	Score             float64 `gorm:"column:score;not null;default:0" json:"score"`
	NeedRepeat        bool    `gorm:"column:need_repeat;not null;default:true" json:"need_repeat"`

	CreatedAt time.Time `gorm:"not null;index:idx_lesson_turns_lesson_created,priority:2" json:"created_at"`
}

func (Turn) TableName() string { return "lesson_turns" }

func (t *Turn) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
