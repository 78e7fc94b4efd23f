package course

import "gorm.io/gorm"

// Lesson is a unit of content within a course, ordered by OrderIndex
type Lesson struct {
	gorm.Model
	CourseID        uint   `json:"course_id" gorm:"index;not null"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	OrderIndex      int    `json:"order_index" gorm:"default:0"`
	DurationMinutes int    `json:"duration_minutes" gorm:"default:0"`
	IsPublished     bool   `json:"is_published" gorm:"default:true"`
	IsDeleted       bool   `gorm:"default:false"`
}
