package controllers

import (
	"errors"
	"lms/database"
	"lms/middleware"
	courseModels "lms/models/course"
	"lms/services/progress"
	"time"

	"github.com/gofiber/fiber/v2"
)

// MarkLessonComplete records a lesson completion through the progress ledger.
// Repeating the call for the same lesson is a no-op and returns the same
// progress state.
func MarkLessonComplete(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	lessonID := c.Locals("lessonID").(int)

	result, err := ledger.RecordCompletion(c.UserContext(), user.ID, uint(courseID), uint(lessonID), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrLessonNotInCourse):
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found in this course!", nil)
		case errors.Is(err, progress.ErrNotEnrolled):
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
		case errors.Is(err, progress.ErrConcurrencyConflict):
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "Progress update conflicted, please retry!", nil)
		default:
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to record lesson completion!", nil)
		}
	}

	message := "Lesson marked as completed successfully!"
	if result.Duplicate {
		message = "Lesson was already completed!"
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, message, result)
}

// GetUserProgress returns the caller's progress detail for one course
func GetUserProgress(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	var completedIDs []uint
	database.Database.Db.Model(&courseModels.ProgressEvent{}).
		Joins("JOIN lessons ON lessons.id = progress_events.lesson_id AND lessons.is_deleted = ?", false).
		Where("progress_events.user_id = ? AND progress_events.course_id = ?", user.ID, courseID).
		Pluck("progress_events.lesson_id", &completedIDs)

	var certificate courseModels.Certificate
	hasCertificate := database.Database.Db.Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&certificate).Error == nil

	response := fiber.Map{
		"enrollment":           enrollment,
		"completed_lesson_ids": completedIDs,
	}
	if hasCertificate {
		response["certificate"] = certificate
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", response)
}
