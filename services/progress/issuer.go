package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	courseModels "lms/models/course"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issuer creates certificate records when an enrollment transitions into
// COMPLETED. Exactly-once is enforced by the (user_id, course_id) unique
// constraint rather than external locking: two racing recomputes can both
// attempt issuance and one insert simply conflicts into a no-op.
type Issuer struct {
	db          *gorm.DB
	timeout     time.Duration
	maxAttempts int
}

func NewIssuer(db *gorm.DB, timeout time.Duration, maxAttempts int) *Issuer {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Issuer{db: db, timeout: timeout, maxAttempts: maxAttempts}
}

// OnCompletionTransition issues the certificate for (userID, courseID).
// Returns the certificate and whether this call created it. A pre-existing
// certificate (retried or concurrently-racing recompute) is success, not an
// error. A certificate code collision triggers a regenerate-and-retry loop
// bounded by maxAttempts before surfacing ErrCertificateCodeSpace.
func (i *Issuer) OnCompletionTransition(ctx context.Context, userID, courseID uint) (*courseModels.Certificate, bool, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	db := i.db.WithContext(ctx)

	var existing courseModels.Certificate
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error; err == nil {
		return &existing, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		certificate := courseModels.Certificate{
			UserID:          userID,
			CourseID:        courseID,
			CertificateCode: GenerateCertificateCode(),
			IssuedAt:        time.Now(),
		}

		err := db.Create(&certificate).Error
		if err == nil {
			return &certificate, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}

		// Duplicate key: either a racing issuance won on (user, course), or
		// the generated code collided. The former is a no-op success.
		var raced courseModels.Certificate
		if lookupErr := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&raced).Error; lookupErr == nil {
			return &raced, false, nil
		}
	}

	return nil, false, ErrCertificateCodeSpace
}

// GenerateCertificateCode builds a globally unique, human-readable code.
func GenerateCertificateCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("CERT-%s-%s", raw[:8], raw[8:16])
}
