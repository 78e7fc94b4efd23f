package analyticsValidator

import (
	"lms/middleware"
	"lms/services/analytics"

	"github.com/gofiber/fiber/v2"
)

var exportableMetrics = map[string]bool{
	analytics.MetricUserGrowth:        true,
	analytics.MetricCoursePerformance: true,
	analytics.MetricPlatformOverview:  true,
}

// ExportQuery validates the type/format query pair for metric exports
func ExportQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		metricType := c.Query("type")
		if !exportableMetrics[metricType] {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Unknown metric type!", nil)
		}

		format := c.Query("format", analytics.FormatJSON)
		if format != analytics.FormatJSON && format != analytics.FormatCSV {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Format must be json or csv!", nil)
		}

		c.Locals("metricType", metricType)
		c.Locals("exportFormat", format)
		return c.Next()
	}
}

// GrowthQuery validates the optional trailing-window period parameter
func GrowthQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := c.QueryInt("days", 30)
		if days < 1 || days > 365 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Days must be between 1 and 365!", nil)
		}
		c.Locals("growthDays", days)
		return c.Next()
	}
}
