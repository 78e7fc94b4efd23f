package controllers

import (
	"lms/database"
	"lms/middleware"
	courseModels "lms/models/course"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetUserCertificates lists the calling user's certificates with course names
func GetUserCertificates(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	type CertificateWithCourse struct {
		courseModels.Certificate
		CourseTitle string `json:"course_title"`
	}

	var certificates []courseModels.Certificate
	if err := database.Database.Db.Where("user_id = ?", user.ID).
		Order("issued_at desc").Find(&certificates).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
	}

	// One IN query for the course titles instead of a lookup per row
	courseIDs := make([]uint, 0, len(certificates))
	for _, cert := range certificates {
		courseIDs = append(courseIDs, cert.CourseID)
	}
	titles := make(map[uint]string, len(courseIDs))
	if len(courseIDs) > 0 {
		var courses []courseModels.Course
		if err := database.Database.Db.Select("id, title").
			Where("id IN ?", courseIDs).Find(&courses).Error; err != nil {
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
		}
		for _, course := range courses {
			titles[course.ID] = course.Title
		}
	}

	result := make([]CertificateWithCourse, len(certificates))
	for i, cert := range certificates {
		result[i] = CertificateWithCourse{
			Certificate: cert,
			CourseTitle: titles[cert.CourseID],
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", result)
}

// VerifyCertificate looks up a certificate by its code. Public endpoint used
// by third parties to validate an issued certificate.
func VerifyCertificate(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	if code == "" {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Certificate code is required!", nil)
	}

	var certificate courseModels.Certificate
	if err := database.Database.Db.Where("certificate_code = ?", code).First(&certificate).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Certificate not found!", nil)
	}

	var course courseModels.Course
	if err := database.Database.Db.Select("title").
		Where("id = ?", certificate.CourseID).First(&course).Error; err != nil {
		log.Printf("Error loading course %d for certificate %s: %v", certificate.CourseID, certificate.CertificateCode, err)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate is valid!", fiber.Map{
		"certificate":  certificate,
		"course_title": course.Title,
	})
}
