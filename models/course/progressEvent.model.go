package course

import (
	"time"

	"gorm.io/gorm"
)

// ProgressEvent is an append-only ledger entry recording that a user completed
// a lesson. The (user_id, lesson_id) uniqueness makes re-submission a no-op.
type ProgressEvent struct {
	gorm.Model
	UserID      uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_progress_events_user_lesson"`
	CourseID    uint      `json:"course_id" gorm:"index;not null"`
	LessonID    uint      `json:"lesson_id" gorm:"not null;uniqueIndex:idx_progress_events_user_lesson"`
	CompletedAt time.Time `json:"completed_at"`
}
