package analyticsRoutes

import (
	analyticsController "lms/controllers/analytics"
	"lms/middleware"
	analyticsValidator "lms/validators/analytics"

	"github.com/gofiber/fiber/v2"
)

// SetupAnalyticsRoutes sets up the dashboard and export routes
func SetupAnalyticsRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin/analytics",
		middleware.JWTMiddleware, middleware.RequireRole("ADMIN"))

	adminGroup.Get("/dashboard", analyticsController.AdminDashboardStats)
	adminGroup.Get("/user-growth", analyticsValidator.GrowthQuery(), analyticsController.UserGrowth)
	adminGroup.Get("/course-performance", analyticsController.CoursePerformance)
	adminGroup.Get("/export", analyticsValidator.ExportQuery(), analyticsController.ExportMetric)
	adminGroup.Post("/refresh", analyticsController.RefreshSnapshots)

	instructorGroup := app.Group("/instructor/analytics",
		middleware.JWTMiddleware, middleware.RequireRole("INSTRUCTOR", "ADMIN"))
	instructorGroup.Get("/dashboard", analyticsController.InstructorDashboard)

	userGroup := app.Group("/user/analytics", middleware.JWTMiddleware)
	userGroup.Get("/dashboard", analyticsController.StudentDashboard)
}
