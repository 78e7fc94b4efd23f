package utils

import (
	"lms/config"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// CertificateIssuedEvent is the payload posted to the configured webhook
// endpoint when a certificate is created.
type CertificateIssuedEvent struct {
	Event           string    `json:"event"`
	UserID          uint      `json:"user_id"`
	CourseID        uint      `json:"course_id"`
	CertificateCode string    `json:"certificate_code"`
	IssuedAt        time.Time `json:"issued_at"`
}

// NotifyCertificateIssued posts a certificate.issued event to the configured
// webhook URL. Fire-and-forget: failures are logged, never propagated.
func NotifyCertificateIssued(userID, courseID uint, certificateCode string, issuedAt time.Time) {
	url := config.AppConfig.CertificateWebhookURL
	if url == "" {
		return
	}

	client := resty.New().SetTimeout(10 * time.Second)
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(CertificateIssuedEvent{
			Event:           "certificate.issued",
			UserID:          userID,
			CourseID:        courseID,
			CertificateCode: certificateCode,
			IssuedAt:        issuedAt,
		}).
		Post(url)
	if err != nil {
		log.Printf("[WEBHOOK] Error posting certificate.issued event: %v", err)
		return
	}
	if resp.IsError() {
		log.Printf("[WEBHOOK] certificate.issued webhook returned %d", resp.StatusCode())
	}
}
