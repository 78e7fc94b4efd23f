package courseValidator

import (
	"lms/middleware"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// CourseRequest is the validated create/update course payload
type CourseRequest struct {
	Title        string  `json:"title" validate:"required,min=3"`
	Description  string  `json:"description"`
	Price        float64 `json:"price" validate:"gte=0"`
	ThumbnailURL string  `json:"thumbnail_url"`
}

// LessonRequest is the validated create/update lesson payload
type LessonRequest struct {
	Title           string `json:"title" validate:"required,min=2"`
	Description     string `json:"description"`
	OrderIndex      int    `json:"order_index" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
}

// ReviewRequest is the validated review payload
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// Pagination is the validated page/limit query pair
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// paramID parses a positive integer route parameter
func paramID(c *fiber.Ctx, name string) (int, bool) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CourseID validates the :id route parameter
func CourseID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := paramID(c, "id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// CourseAndLessonID validates the :course_id and :lesson_id route parameters
func CourseAndLessonID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := paramID(c, "course_id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}
		lessonID, ok := paramID(c, "lesson_id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Lesson ID!", nil)
		}
		c.Locals("courseID", courseID)
		c.Locals("lessonID", lessonID)
		return c.Next()
	}
}

// CourseAndUserID validates the :course_id and :user_id route parameters
func CourseAndUserID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := paramID(c, "course_id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}
		userID, ok := paramID(c, "user_id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid User ID!", nil)
		}
		c.Locals("courseID", courseID)
		c.Locals("targetUserID", userID)
		return c.Next()
	}
}

// CreateCourse validates the course payload
func CreateCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CourseRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := validationErrors(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedCourse", reqData)
		return c.Next()
	}
}

// LessonBody validates the lesson payload; route parameters are validated separately
func LessonBody() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LessonRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := validationErrors(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}
		c.Locals("validatedLesson", reqData)
		return c.Next()
	}
}

// SubmitReview validates the :id route parameter plus the review payload
func SubmitReview() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := paramID(c, "id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid Course ID!", nil)
		}

		reqData := new(ReviewRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}
		if errs := validationErrors(reqData); len(errs) > 0 {
			return middleware.ValidationErrorResponse(c, errs)
		}

		c.Locals("courseID", courseID)
		c.Locals("validatedReview", reqData)
		return c.Next()
	}
}

// Paginate parses optional page/limit query parameters with defaults
func Paginate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		limit := c.QueryInt("limit", 10)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 10
		}
		c.Locals("pagination", &Pagination{Page: page, Limit: limit})
		return c.Next()
	}
}

func validationErrors(payload interface{}) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	if invalid, ok := err.(*validator.InvalidValidationError); ok {
		errs["payload"] = invalid.Error()
		return errs
	}
	for _, fieldErr := range err.(validator.ValidationErrors) {
		errs[strings.ToLower(fieldErr.Field())] = "failed on rule: " + fieldErr.Tag()
	}
	return errs
}
