package controllers

import (
	"lms/database"
	"lms/middleware"
	courseModels "lms/models/course"
	courseValidator "lms/validators/course"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// refreshTotalLessons recomputes the derived lesson count on the course row
func refreshTotalLessons(tx *gorm.DB, courseID uint) error {
	var total int64
	if err := tx.Model(&courseModels.Lesson{}).
		Where("course_id = ? AND is_deleted = ?", courseID, false).
		Count(&total).Error; err != nil {
		return err
	}
	return tx.Model(&courseModels.Course{}).Where("id = ?", courseID).
		Update("total_lessons", total).Error
}

// CreateLesson adds a lesson to an owned course
func CreateLesson(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedLesson").(*courseValidator.LessonRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	lesson := courseModels.Lesson{
		CourseID:        course.ID,
		Title:           reqData.Title,
		Description:     reqData.Description,
		OrderIndex:      reqData.OrderIndex,
		DurationMinutes: reqData.DurationMinutes,
	}

	tx := database.Database.Db.Begin()
	if err := tx.Create(&lesson).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create lesson!", nil)
	}
	if err := refreshTotalLessons(tx, course.ID); err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update lesson count!", nil)
	}
	tx.Commit()

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Lesson created successfully!", lesson)
}

// UpdateLesson edits an existing lesson of an owned course
func UpdateLesson(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	lessonID := c.Locals("lessonID").(int)

	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?",
		lessonID, course.ID, false).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	reqData, ok := c.Locals("validatedLesson").(*courseValidator.LessonRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	lesson.Title = reqData.Title
	lesson.Description = reqData.Description
	lesson.OrderIndex = reqData.OrderIndex
	lesson.DurationMinutes = reqData.DurationMinutes

	if err := database.Database.Db.Save(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update lesson!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson updated successfully!", lesson)
}

// DeleteLesson removes a lesson and recomputes progress for every enrollment
// of the course, since each enrollment's percentage may change. Completed
// enrollments keep their status.
func DeleteLesson(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	lessonID := c.Locals("lessonID").(int)

	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?",
		lessonID, course.ID, false).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	tx := database.Database.Db.Begin()
	if err := tx.Model(&lesson).Update("is_deleted", true).Error; err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete lesson!", nil)
	}
	if err := refreshTotalLessons(tx, course.ID); err != nil {
		tx.Rollback()
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update lesson count!", nil)
	}
	tx.Commit()

	// Cascading invalidation: every enrollment's percentage is stale now
	if err := aggregator.RecomputeCourse(c.UserContext(), course.ID); err != nil {
		log.Printf("Error recomputing course %d after lesson delete: %v", course.ID, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson deleted successfully!", nil)
}

// GetLessons lists the lessons of an owned course (including drafts)
func GetLessons(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	var lessons []courseModels.Lesson
	if err := database.Database.Db.Where("course_id = ? AND is_deleted = ?", course.ID, false).
		Order("order_index asc").Find(&lessons).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch lessons!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lessons fetched successfully!", lessons)
}
