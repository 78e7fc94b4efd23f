package course

import "gorm.io/gorm"

// Review is a course rating left by an enrolled user, one per (user, course)
type Review struct {
	gorm.Model
	UserID    uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_reviews_user_course"`
	CourseID  uint   `json:"course_id" gorm:"not null;index;uniqueIndex:idx_reviews_user_course"`
	Rating    int    `json:"rating" gorm:"not null"` // 1-5
	Comment   string `json:"comment"`
	IsDeleted bool   `gorm:"default:false"`
}
