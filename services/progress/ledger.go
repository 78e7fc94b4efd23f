package progress

import (
	"context"
	"errors"
	"time"

	courseModels "lms/models/course"

	"gorm.io/gorm"
)

// Ledger records discrete lesson-completion events. Inserts for different
// (user, lesson) pairs are independent; only the downstream recompute for the
// same enrollment serializes.
type Ledger struct {
	db         *gorm.DB
	timeout    time.Duration
	aggregator *Aggregator
	issuer     *Issuer
	onIssued   func(certificate courseModels.Certificate)
}

func NewLedger(db *gorm.DB, timeout time.Duration, aggregator *Aggregator, issuer *Issuer) *Ledger {
	return &Ledger{db: db, timeout: timeout, aggregator: aggregator, issuer: issuer}
}

// OnCertificateIssued registers a hook invoked (in its own goroutine) after a
// certificate is created. Used for email and webhook notifications.
func (l *Ledger) OnCertificateIssued(hook func(certificate courseModels.Certificate)) {
	l.onIssued = hook
}

// CompletionResult reports the outcome of a RecordCompletion call.
type CompletionResult struct {
	Event       courseModels.ProgressEvent `json:"event"`
	Duplicate   bool                       `json:"duplicate"`
	Progress    Progress                   `json:"progress"`
	Certificate *courseModels.Certificate  `json:"certificate,omitempty"`
}

// RecordCompletion appends a lesson-completion event for (userID, lessonID).
//
// The lesson must belong to the course and the user must hold an active,
// non-refunded enrollment. Re-submitting an already-recorded lesson is an
// idempotent no-op: the existing event is returned, no duplicate row is
// written and no recompute runs. A first-time insert triggers the aggregator
// and, on a completion transition, the certificate issuer.
func (l *Ledger) RecordCompletion(ctx context.Context, userID, courseID, lessonID uint, at time.Time) (*CompletionResult, error) {
	callCtx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	db := l.db.WithContext(callCtx)

	var lesson courseModels.Lesson
	if err := db.Where("id = ? AND course_id = ? AND is_deleted = ?", lessonID, courseID, false).
		First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotInCourse
		}
		return nil, err
	}

	var enrollment courseModels.Enrollment
	if err := db.Where("user_id = ? AND course_id = ? AND status <> ?",
		userID, courseID, courseModels.StatusRefunded).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}

	var existing courseModels.ProgressEvent
	if err := db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&existing).Error; err == nil {
		return l.duplicateResult(existing, enrollment), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if at.IsZero() {
		at = time.Now()
	}
	event := courseModels.ProgressEvent{
		UserID:      userID,
		CourseID:    courseID,
		LessonID:    lessonID,
		CompletedAt: at,
	}
	if err := db.Create(&event).Error; err != nil {
		// The unique constraint is the backstop for two racing first-time
		// submissions; the loser folds into the idempotent path.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if lookupErr := db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).
				First(&existing).Error; lookupErr == nil {
				return l.duplicateResult(existing, enrollment), nil
			}
		}
		return nil, err
	}

	// Use the caller's context here, not the per-call one: the ledger timeout
	// covers the append, the aggregator applies its own.
	updated, err := l.aggregator.Recompute(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Event: event, Progress: updated}
	if updated.TransitionedToCompleted {
		certificate, issued, err := l.issuer.OnCompletionTransition(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		result.Certificate = certificate
		if issued && l.onIssued != nil {
			go l.onIssued(*certificate)
		}
	}
	return result, nil
}

// duplicateResult reports the already-recorded event with the enrollment's
// current (unchanged) progress, so repeated calls return identical output.
func (l *Ledger) duplicateResult(event courseModels.ProgressEvent, enrollment courseModels.Enrollment) *CompletionResult {
	return &CompletionResult{
		Event:     event,
		Duplicate: true,
		Progress: Progress{
			Percentage:       enrollment.Progress,
			Status:           enrollment.Status,
			CompletedLessons: enrollment.CompletedLessons,
			TotalLessons:     enrollment.TotalLessons,
		},
	}
}
