package authRoutes

import (
	authController "lms/controllers/auth"
	"lms/middleware"
	authValidator "lms/validators/auth"

	"github.com/gofiber/fiber/v2"
)

// SetupAuthRoutes sets up authentication and user-administration routes
func SetupAuthRoutes(app *fiber.App) {
	authGroup := app.Group("/auth")

	authGroup.Post("/signup", authValidator.Signup(), authController.Signup)
	authGroup.Post("/login", authValidator.Login(), authController.Login)

	// Role changes are an admin action only
	adminGroup := app.Group("/admin/users")
	adminGroup.Put("/:id/role", middleware.JWTMiddleware, middleware.RequireRole("ADMIN"),
		authValidator.UpdateRole(), authController.UpdateUserRole)
}
