package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all user-facing course routes
func SetupCourseRoutes(app *fiber.App) {
	userGroup := app.Group("/course")

	// Course listing and details (published courses)
	userGroup.Get("/list", middleware.JWTMiddleware, validators.Paginate(), controllers.GetAllCourses)
	userGroup.Get("/:id", middleware.JWTMiddleware, validators.CourseID(), controllers.GetCourseDetails)

	// Enrollment
	userGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.CourseID(), controllers.EnrollInCourse)

	// Lesson completion and progress tracking
	userGroup.Post("/:course_id/lesson/:lesson_id/complete", middleware.JWTMiddleware,
		validators.CourseAndLessonID(), controllers.MarkLessonComplete)
	userGroup.Get("/:id/progress", middleware.JWTMiddleware, validators.CourseID(), controllers.GetUserProgress)

	// Reviews
	userGroup.Post("/:id/review", middleware.JWTMiddleware, validators.SubmitReview(), controllers.SubmitReview)

	// User enrollments and certificates
	userEnrollGroup := app.Group("/user")
	userEnrollGroup.Get("/enrollments", middleware.JWTMiddleware, validators.Paginate(), controllers.GetEnrollments)
	userEnrollGroup.Get("/certificates", middleware.JWTMiddleware, controllers.GetUserCertificates)

	// Public certificate verification
	app.Get("/certificate/verify/:code", controllers.VerifyCertificate)
}

// SetupInstructorRoutes sets up course-management routes for instructors and admins
func SetupInstructorRoutes(app *fiber.App) {
	instructorGroup := app.Group("/instructor/course",
		middleware.JWTMiddleware, middleware.RequireRole("INSTRUCTOR", "ADMIN"))

	instructorGroup.Post("/", validators.CreateCourse(), controllers.CreateCourse)
	instructorGroup.Put("/:id", validators.CourseID(), validators.CreateCourse(), controllers.UpdateCourse)
	instructorGroup.Post("/:id/publish", validators.CourseID(), controllers.PublishCourse)
	instructorGroup.Post("/:id/archive", validators.CourseID(), controllers.ArchiveCourse)

	instructorGroup.Get("/:id/lessons", validators.CourseID(), controllers.GetLessons)
	instructorGroup.Post("/:id/lessons", validators.CourseID(), validators.LessonBody(), controllers.CreateLesson)
	instructorGroup.Put("/:course_id/lesson/:lesson_id", validators.CourseAndLessonID(),
		validators.LessonBody(), controllers.UpdateLesson)
	instructorGroup.Delete("/:course_id/lesson/:lesson_id", validators.CourseAndLessonID(), controllers.DeleteLesson)

	// Refunds are an admin action
	adminGroup := app.Group("/admin/course", middleware.JWTMiddleware, middleware.RequireRole("ADMIN"))
	adminGroup.Post("/:course_id/enrollment/:user_id/refund", validators.CourseAndUserID(), controllers.RefundEnrollment)
}
