package course

import (
	"time"

	"gorm.io/gorm"
)

// Certificate represents an issued certificate for course completion.
// Immutable once issued; the (user_id, course_id) uniqueness is the
// exactly-once mechanism under concurrent completion triggers.
type Certificate struct {
	gorm.Model
	UserID          uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_certificates_user_course"`
	CourseID        uint      `json:"course_id" gorm:"not null;uniqueIndex:idx_certificates_user_course"`
	CertificateCode string    `json:"certificate_code" gorm:"unique;not null"`
	IssuedAt        time.Time `json:"issued_at"`
}
