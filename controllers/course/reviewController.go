package controllers

import (
	"errors"
	"lms/database"
	"lms/middleware"
	courseModels "lms/models/course"
	courseValidator "lms/validators/course"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SubmitReview lets an enrolled user rate a course. One review per
// (user, course); a re-submission updates the existing review.
func SubmitReview(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)

	// Only enrolled users may review
	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND status <> ?",
		user.ID, courseID, courseModels.StatusRefunded).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	reqData, ok := c.Locals("validatedReview").(*courseValidator.ReviewRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var review courseModels.Review
	err = database.Database.Db.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		review = courseModels.Review{
			UserID:   user.ID,
			CourseID: uint(courseID),
			Rating:   reqData.Rating,
			Comment:  reqData.Comment,
		}
		if err := database.Database.Db.Create(&review).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to submit review!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusCreated, true, "Review submitted successfully!", review)
	} else if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to submit review!", nil)
	}

	review.Rating = reqData.Rating
	review.Comment = reqData.Comment
	if err := database.Database.Db.Save(&review).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update review!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Review updated successfully!", review)
}
