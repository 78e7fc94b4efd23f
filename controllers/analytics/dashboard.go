package analyticsController

import (
	"fmt"
	"lms/database"
	"lms/middleware"
	"lms/models"
	"lms/services/analytics"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
)

var rollup *analytics.Rollup

// Setup injects the analytics rollup. Called once from main.
func Setup(r *analytics.Rollup) {
	rollup = r
}

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

// AdminDashboardStats serves the platform overview, cached when fresh
func AdminDashboardStats(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	result, err := rollup.ComputeMetric(c.UserContext(), analytics.MetricRequest{
		Type:        analytics.MetricPlatformOverview,
		AllowCached: true,
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to compute dashboard stats!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Dashboard stats fetched successfully!", result)
}

// UserGrowth serves the cumulative user-growth series (admin)
func UserGrowth(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	days := c.Locals("growthDays").(int)

	result, err := rollup.ComputeMetric(c.UserContext(), analytics.MetricRequest{
		Type:        analytics.MetricUserGrowth,
		Period:      fmt.Sprintf("%dd", days),
		AllowCached: true,
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to compute user growth!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "User growth fetched successfully!", result)
}

// CoursePerformance serves per-course metrics for all courses (admin)
func CoursePerformance(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	result, err := rollup.ComputeMetric(c.UserContext(), analytics.MetricRequest{
		Type:        analytics.MetricCoursePerformance,
		AllowCached: true,
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to compute course performance!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Course performance fetched successfully!", result)
}

// InstructorDashboard serves per-course metrics scoped to the caller's courses
func InstructorDashboard(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	rows, err := rollup.CoursePerformance(c.UserContext(), user.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to compute instructor dashboard!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Instructor dashboard fetched successfully!", rows)
}

// StudentDashboard serves the caller's enrollment-scoped dashboard
func StudentDashboard(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	dashboard, err := rollup.StudentDashboard(c.UserContext(), user.ID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to compute student dashboard!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Student dashboard fetched successfully!", dashboard)
}

// ExportMetric streams a metric as json or csv (admin)
func ExportMetric(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	metricType := c.Locals("metricType").(string)
	format := c.Locals("exportFormat").(string)

	payload, contentType, err := rollup.Export(c.UserContext(), metricType, format)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to export metric!", nil)
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", metricType, format))
	return c.Send(payload)
}

// RefreshSnapshots recomputes the global snapshots on demand (admin)
func RefreshSnapshots(c *fiber.Ctx) error {
	if _, err := currentUser(c); err != nil {
		return err
	}

	utils.RefreshAnalyticsSnapshots(rollup)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Analytics snapshots refreshed!", nil)
}
