package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	courseModels "lms/models/course"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Progress is the aggregator's view of an enrollment after a recompute.
type Progress struct {
	Percentage              float64 `json:"percentage"`
	Status                  string  `json:"status"`
	CompletedLessons        int     `json:"completed_lessons"`
	TotalLessons            int     `json:"total_lessons"`
	TransitionedToCompleted bool    `json:"transitioned_to_completed"`
}

// Aggregator recomputes an enrollment's progress percentage and completion
// status from the progress ledger. The recompute runs in a transaction with a
// row lock on the enrollment so concurrent lesson completions for the same
// enrollment serialize instead of losing an update.
type Aggregator struct {
	db         *gorm.DB
	timeout    time.Duration
	maxRetries int
}

func NewAggregator(db *gorm.DB, timeout time.Duration) *Aggregator {
	return &Aggregator{db: db, timeout: timeout, maxRetries: 3}
}

// Recompute reads the ledger and rewrites the enrollment's progress fields.
//
// Percentage is floor(100*k/L) over distinct completed lessons still present
// in the course; a course with no lessons is pinned at 0 and can never
// complete. Completion is sticky: once COMPLETED the status is never reverted,
// even if lessons are later removed and the percentage drops. This protects
// already-issued certificates.
func (a *Aggregator) Recompute(ctx context.Context, userID, courseID uint) (Progress, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 25 * time.Millisecond)
		}

		result, err := a.recomputeOnce(ctx, userID, courseID)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrEnrollmentNotFound) || errors.Is(err, context.Canceled) {
			return Progress{}, err
		}
		if !isRetryable(err) {
			return Progress{}, err
		}
		lastErr = err
	}
	return Progress{}, fmt.Errorf("%w: %v", ErrConcurrencyConflict, lastErr)
}

func (a *Aggregator) recomputeOnce(ctx context.Context, userID, courseID uint) (Progress, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	var result Progress
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var enrollment courseModels.Enrollment
		q := tx
		// SQLite takes a database-level write lock inside the transaction, so
		// the explicit row lock only applies on PostgreSQL.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEnrollmentNotFound
			}
			return err
		}

		var totalLessons int64
		if err := tx.Model(&courseModels.Lesson{}).
			Where("course_id = ? AND is_deleted = ?", courseID, false).
			Count(&totalLessons).Error; err != nil {
			return err
		}

		// Events for lessons removed from the course no longer count.
		var completedLessons int64
		if err := tx.Model(&courseModels.ProgressEvent{}).
			Joins("JOIN lessons ON lessons.id = progress_events.lesson_id AND lessons.is_deleted = ?", false).
			Where("progress_events.user_id = ? AND progress_events.course_id = ?", userID, courseID).
			Distinct("progress_events.lesson_id").
			Count(&completedLessons).Error; err != nil {
			return err
		}

		// Multiply before dividing: k/L*100 accumulates float error (29/100
		// floors to 28), 100*k/L is exact for these magnitudes.
		percentage := 0.0
		if totalLessons > 0 {
			percentage = math.Floor(float64(completedLessons*100) / float64(totalLessons))
		}

		enrollment.Progress = percentage
		enrollment.CompletedLessons = int(completedLessons)
		enrollment.TotalLessons = int(totalLessons)

		transitioned := false
		switch enrollment.Status {
		case courseModels.StatusCompleted, courseModels.StatusRefunded:
			// Sticky completion; refunds keep their terminal status too.
		default:
			if totalLessons > 0 && percentage >= 100 {
				enrollment.Status = courseModels.StatusCompleted
				transitioned = true
				if enrollment.CompletedAt == nil {
					now := time.Now()
					enrollment.CompletedAt = &now
				}
			} else if percentage > 0 {
				enrollment.Status = courseModels.StatusInProgress
			}
		}

		if err := tx.Save(&enrollment).Error; err != nil {
			return err
		}

		result = Progress{
			Percentage:              enrollment.Progress,
			Status:                  enrollment.Status,
			CompletedLessons:        enrollment.CompletedLessons,
			TotalLessons:            enrollment.TotalLessons,
			TransitionedToCompleted: transitioned,
		}
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return result, nil
}

// RecomputeCourse reruns the recompute for every enrollment of a course.
// Used after a lesson is removed, since every enrollment's percentage may change.
func (a *Aggregator) RecomputeCourse(ctx context.Context, courseID uint) error {
	var userIDs []uint
	if err := a.db.WithContext(ctx).Model(&courseModels.Enrollment{}).
		Where("course_id = ?", courseID).
		Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}

	for _, userID := range userIDs {
		if _, err := a.Recompute(ctx, userID, courseID); err != nil {
			return err
		}
	}
	return nil
}

// isRetryable reports whether a store error is transient: lock contention,
// serialization failures and timeouts are retried a bounded number of times.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "serialization") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "lock wait timeout")
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
