package course

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses
const (
	StatusEnrolled   = "ENROLLED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusRefunded   = "REFUNDED"
)

// Payment statuses
const (
	PaymentFree     = "FREE"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
)

// Enrollment tracks a user's enrollment in a course with derived progress.
// Progress and Status are written only by the aggregator, never by clients.
// Rows are hard rows (no soft delete): the (user_id, course_id) uniqueness
// backs the duplicate-enrollment check at the schema level.
type Enrollment struct {
	gorm.Model
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_enrollments_user_course"`
	CourseID         uint       `json:"course_id" gorm:"not null;index;uniqueIndex:idx_enrollments_user_course"`
	Status           string     `json:"status" gorm:"default:'ENROLLED'"`
	Progress         float64    `json:"progress" gorm:"default:0"` // completion percentage (0-100)
	CompletedLessons int        `json:"completed_lessons" gorm:"default:0"`
	TotalLessons     int        `json:"total_lessons" gorm:"default:0"`
	PaymentStatus    string     `json:"payment_status" gorm:"default:'FREE'"`
	PaymentAmount    float64    `json:"payment_amount" gorm:"default:0"`
	CompletedAt      *time.Time `json:"completed_at"` // set exactly once, on first transition into COMPLETED
}
