package course

import "gorm.io/gorm"

// Course represents a learning course owned by an instructor
type Course struct {
	gorm.Model
	InstructorID uint    `json:"instructor_id" gorm:"index;not null"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Status       string  `json:"status" gorm:"default:'DRAFT'"` // DRAFT, PUBLISHED, ARCHIVED
	Price        float64 `json:"price" gorm:"default:0"`
	TotalLessons int     `json:"total_lessons" gorm:"default:0"` // derived, recomputed when lessons change
	ThumbnailURL string  `json:"thumbnail_url"`
	IsDeleted    bool    `gorm:"default:false"`
}
