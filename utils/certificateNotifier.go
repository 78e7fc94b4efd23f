package utils

import (
	"log"

	"lms/models"
	courseModels "lms/models/course"

	"gorm.io/gorm"
)

// CertificateNotifier returns the hook run after a certificate is issued. It
// looks up the recipient and course, then sends the congratulation email and
// fires the outbound webhook. Failures are logged, never propagated.
func CertificateNotifier(db *gorm.DB) func(certificate courseModels.Certificate) {
	return func(certificate courseModels.Certificate) {
		var user models.User
		if err := db.First(&user, certificate.UserID).Error; err != nil {
			log.Printf("certificate notify: user %d lookup failed: %v", certificate.UserID, err)
			return
		}

		var course courseModels.Course
		if err := db.First(&course, certificate.CourseID).Error; err != nil {
			log.Printf("certificate notify: course %d lookup failed: %v", certificate.CourseID, err)
			return
		}

		if err := SendCertificateEmail(user.Email, user.Name, course.Title, certificate.CertificateCode); err != nil {
			log.Printf("certificate notify: email to %s failed: %v", user.Email, err)
		}

		NotifyCertificateIssued(certificate.UserID, certificate.CourseID, certificate.CertificateCode, certificate.IssuedAt)
	}
}
