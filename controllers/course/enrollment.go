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

// EnrollInCourse enrolls the calling user in a published course. Payment is
// settled by the external payment flow before this call; the amount is
// recorded here for the revenue rollup.
func EnrollInCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)

	// Check if course exists and is published
	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND status = ?",
		courseID, false, "PUBLISHED").First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	// Check if user is already enrolled
	var existingEnrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&existingEnrollment).Error; err == nil {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "User already enrolled in this course!", nil)
	}

	enrollment := courseModels.Enrollment{
		UserID:        user.ID,
		CourseID:      uint(courseID),
		Status:        courseModels.StatusEnrolled,
		PaymentStatus: courseModels.PaymentFree,
	}
	if course.Price > 0 {
		enrollment.PaymentStatus = courseModels.PaymentPaid
		enrollment.PaymentAmount = course.Price
	}

	if err := database.Database.Db.Create(&enrollment).Error; err != nil {
		// Unique (user_id, course_id) backstop for racing enroll calls
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "User already enrolled in this course!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to enroll in course!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrolled in course successfully!", enrollment)
}

// GetEnrollments lists the calling user's enrollments with course details
func GetEnrollments(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	reqData := c.Locals("pagination").(*courseValidator.Pagination)
	offset := (reqData.Page - 1) * reqData.Limit

	db := database.Database.Db.Model(&courseModels.Enrollment{}).Where("user_id = ?", user.ID)

	var total int64
	db.Count(&total)

	var enrollments []courseModels.Enrollment
	if err := db.Offset(offset).Limit(reqData.Limit).Order("created_at desc").
		Find(&enrollments).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
	}

	type EnrollmentWithCourse struct {
		courseModels.Enrollment
		CourseTitle string `json:"course_title"`
	}

	// One IN query for the course titles instead of a lookup per row
	courseIDs := make([]uint, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	titles := make(map[uint]string, len(courseIDs))
	if len(courseIDs) > 0 {
		var courses []courseModels.Course
		if err := database.Database.Db.Select("id, title").
			Where("id IN ?", courseIDs).Find(&courses).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch enrollments!", nil)
		}
		for _, course := range courses {
			titles[course.ID] = course.Title
		}
	}

	result := make([]EnrollmentWithCourse, len(enrollments))
	for i, e := range enrollments {
		result[i] = EnrollmentWithCourse{
			Enrollment:  e,
			CourseTitle: titles[e.CourseID],
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", fiber.Map{
		"enrollments": result,
		"pagination": fiber.Map{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	})
}

// RefundEnrollment marks an enrollment refunded (admin only). Refunded
// enrollments stop counting toward revenue and never complete.
func RefundEnrollment(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	targetUserID := c.Locals("targetUserID").(int)

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ?", targetUserID, courseID).
		First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Enrollment not found!", nil)
	}

	if enrollment.Status == courseModels.StatusRefunded {
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Enrollment already refunded!", nil)
	}

	enrollment.Status = courseModels.StatusRefunded
	enrollment.PaymentStatus = courseModels.PaymentRefunded

	if err := database.Database.Db.Save(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to refund enrollment!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment refunded successfully!", enrollment)
}
