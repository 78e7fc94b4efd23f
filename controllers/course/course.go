package controllers

import (
	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	courseValidator "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// currentUser loads the authenticated user or writes the error response
func currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}
	return &user, nil
}

// ownedCourse loads a course and checks the caller owns it (or is an admin)
func ownedCourse(c *fiber.Ctx, user *models.User, courseID int) (*courseModels.Course, error) {
	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", courseID, false).First(&course).Error; err != nil {
		return nil, middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}
	if course.InstructorID != user.ID && user.Role != "ADMIN" {
		return nil, middleware.JsonResponse(c, fiber.StatusForbidden, false, "You do not own this course!", nil)
	}
	return &course, nil
}

// CreateCourse creates a draft course owned by the calling instructor
func CreateCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedCourse").(*courseValidator.CourseRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	course := courseModels.Course{
		InstructorID: user.ID,
		Title:        reqData.Title,
		Description:  reqData.Description,
		Price:        reqData.Price,
		ThumbnailURL: reqData.ThumbnailURL,
		Status:       "DRAFT",
	}

	if err := database.Database.Db.Create(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create course!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Course created successfully!", course)
}

// UpdateCourse updates title/description/price of an owned course
func UpdateCourse(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	reqData, ok := c.Locals("validatedCourse").(*courseValidator.CourseRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	course.Title = reqData.Title
	course.Description = reqData.Description
	course.Price = reqData.Price
	if reqData.ThumbnailURL != "" {
		course.ThumbnailURL = reqData.ThumbnailURL
	}

	if err := database.Database.Db.Save(course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update course!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course updated successfully!", course)
}

// PublishCourse flips a draft course to PUBLISHED
func PublishCourse(c *fiber.Ctx) error {
	return setCourseStatus(c, "PUBLISHED", "Course published successfully!")
}

// ArchiveCourse flips a course to ARCHIVED
func ArchiveCourse(c *fiber.Ctx) error {
	return setCourseStatus(c, "ARCHIVED", "Course archived successfully!")
}

func setCourseStatus(c *fiber.Ctx, status, message string) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)
	course, err := ownedCourse(c, user, courseID)
	if err != nil {
		return err
	}

	course.Status = status
	if err := database.Database.Db.Save(course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update course status!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, message, course)
}

// GetAllCourses lists published courses with pagination
func GetAllCourses(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	reqData := c.Locals("pagination").(*courseValidator.Pagination)
	offset := (reqData.Page - 1) * reqData.Limit

	db := database.Database.Db.Model(&courseModels.Course{}).
		Where("is_deleted = ? AND status = ?", false, "PUBLISHED")

	var total int64
	db.Count(&total)

	var courses []courseModels.Course
	if err := db.Offset(offset).Limit(reqData.Limit).Order("created_at desc").Find(&courses).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch courses!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Courses fetched successfully!", fiber.Map{
		"courses": courses,
		"pagination": fiber.Map{
			"total": total,
			"page":  reqData.Page,
			"limit": reqData.Limit,
		},
	})
}

// GetCourseDetails returns a course with its lessons and the caller's enrollment
func GetCourseDetails(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	courseID := c.Locals("courseID").(int)

	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND status = ?",
		courseID, false, "PUBLISHED").First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}

	var lessons []courseModels.Lesson
	database.Database.Db.Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("order_index asc").Find(&lessons)

	var enrollment courseModels.Enrollment
	isEnrolled := database.Database.Db.Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&enrollment).Error == nil

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course details fetched successfully!", fiber.Map{
		"course":      course,
		"lessons":     lessons,
		"is_enrolled": isEnrolled,
		"enrollment":  enrollment,
	})
}
