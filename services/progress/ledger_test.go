package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lms/database"
	"lms/models"
	courseModels "lms/models/course"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	db         *gorm.DB
	ledger     *Ledger
	aggregator *Aggregator
	issuer     *Issuer
	student    models.User
	course     courseModels.Course
	lessons    []courseModels.Lesson
}

// newFixture seeds a published course with the given lesson count and one
// enrolled student.
func newFixture(t *testing.T, lessonCount int) *fixture {
	t.Helper()
	db := setupTestDB(t)

	instructor := models.User{Name: "Instructor", Email: "instructor@example.com", Role: "INSTRUCTOR", Password: "x"}
	require.NoError(t, db.Create(&instructor).Error)

	student := models.User{Name: "Student", Email: "student@example.com", Password: "x"}
	require.NoError(t, db.Create(&student).Error)

	course := courseModels.Course{
		InstructorID: instructor.ID,
		Title:        "Distributed Systems",
		Status:       "PUBLISHED",
		TotalLessons: lessonCount,
	}
	require.NoError(t, db.Create(&course).Error)

	lessons := make([]courseModels.Lesson, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		lesson := courseModels.Lesson{
			CourseID:   course.ID,
			Title:      fmt.Sprintf("Lesson %d", i+1),
			OrderIndex: i,
		}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}

	enrollment := courseModels.Enrollment{
		UserID:       student.ID,
		CourseID:     course.ID,
		Status:       courseModels.StatusEnrolled,
		TotalLessons: lessonCount,
	}
	require.NoError(t, db.Create(&enrollment).Error)

	aggregator := NewAggregator(db, 5*time.Second)
	issuer := NewIssuer(db, 5*time.Second, 5)
	return &fixture{
		db:         db,
		ledger:     NewLedger(db, 5*time.Second, aggregator, issuer),
		aggregator: aggregator,
		issuer:     issuer,
		student:    student,
		course:     course,
		lessons:    lessons,
	}
}

func (f *fixture) enrollment(t *testing.T) courseModels.Enrollment {
	t.Helper()
	var enrollment courseModels.Enrollment
	require.NoError(t, f.db.Where("user_id = ? AND course_id = ?", f.student.ID, f.course.ID).
		First(&enrollment).Error)
	return enrollment
}

func TestRecordCompletionProgression(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	// Lessons 1-3: partial progress, floor percentage, IN_PROGRESS.
	for i, want := range []float64{25, 50, 75} {
		result, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[i].ID, time.Now())
		require.NoError(t, err)
		require.False(t, result.Duplicate)
		require.Equal(t, want, result.Progress.Percentage)
		require.Equal(t, courseModels.StatusInProgress, result.Progress.Status)
		require.False(t, result.Progress.TransitionedToCompleted)
		require.Nil(t, result.Certificate)
	}

	// Final lesson: completion transition plus certificate.
	result, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[3].ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, 100.0, result.Progress.Percentage)
	require.Equal(t, courseModels.StatusCompleted, result.Progress.Status)
	require.True(t, result.Progress.TransitionedToCompleted)
	require.NotNil(t, result.Certificate)

	enrollment := f.enrollment(t)
	require.NotNil(t, enrollment.CompletedAt)

	var certificates int64
	require.NoError(t, f.db.Model(&courseModels.Certificate{}).Count(&certificates).Error)
	require.Equal(t, int64(1), certificates)
}

func TestRecordCompletionIdempotent(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	first, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[0].ID, time.Now())
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[0].ID, time.Now())
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Event.ID, second.Event.ID)
	require.Equal(t, first.Progress.Percentage, second.Progress.Percentage)

	var events int64
	require.NoError(t, f.db.Model(&courseModels.ProgressEvent{}).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestRecordCompletionLessonNotInCourse(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	other := courseModels.Course{InstructorID: 1, Title: "Other", Status: "PUBLISHED"}
	require.NoError(t, f.db.Create(&other).Error)
	foreign := courseModels.Lesson{CourseID: other.ID, Title: "Foreign"}
	require.NoError(t, f.db.Create(&foreign).Error)

	_, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, foreign.ID, time.Now())
	require.ErrorIs(t, err, ErrLessonNotInCourse)
}

func TestRecordCompletionRequiresActiveEnrollment(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	outsider := models.User{Name: "Outsider", Email: "outsider@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&outsider).Error)

	_, err := f.ledger.RecordCompletion(ctx, outsider.ID, f.course.ID, f.lessons[0].ID, time.Now())
	require.ErrorIs(t, err, ErrNotEnrolled)

	// A refunded enrollment no longer accepts completions.
	require.NoError(t, f.db.Model(&courseModels.Enrollment{}).
		Where("user_id = ? AND course_id = ?", f.student.ID, f.course.ID).
		Update("status", courseModels.StatusRefunded).Error)

	_, err = f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[0].ID, time.Now())
	require.ErrorIs(t, err, ErrNotEnrolled)
}

func TestCompletionIsSticky(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for _, lesson := range f.lessons {
		_, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, lesson.ID, time.Now())
		require.NoError(t, err)
	}

	completed := f.enrollment(t)
	require.Equal(t, courseModels.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	completedAt := *completed.CompletedAt

	// Adding a lesson drops the percentage but never the COMPLETED status,
	// and CompletedAt keeps its original value.
	extra := courseModels.Lesson{CourseID: f.course.ID, Title: "Lesson 3", OrderIndex: 2}
	require.NoError(t, f.db.Create(&extra).Error)

	updated, err := f.aggregator.Recompute(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 66.0, updated.Percentage)
	require.Equal(t, courseModels.StatusCompleted, updated.Status)
	require.False(t, updated.TransitionedToCompleted)

	enrollment := f.enrollment(t)
	require.NotNil(t, enrollment.CompletedAt)
	require.WithinDuration(t, completedAt, *enrollment.CompletedAt, time.Second)

	var certificates int64
	require.NoError(t, f.db.Model(&courseModels.Certificate{}).Count(&certificates).Error)
	require.Equal(t, int64(1), certificates)
}

func TestRecomputeExcludesDeletedLessons(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	for _, lesson := range f.lessons[:2] {
		_, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, lesson.ID, time.Now())
		require.NoError(t, err)
	}

	// Removing a completed lesson shrinks both counts: 1 of 3 remaining.
	require.NoError(t, f.db.Model(&courseModels.Lesson{}).
		Where("id = ?", f.lessons[0].ID).
		Update("is_deleted", true).Error)

	updated, err := f.aggregator.Recompute(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 33.0, updated.Percentage)
	require.Equal(t, 1, updated.CompletedLessons)
	require.Equal(t, 3, updated.TotalLessons)
}

func TestRecomputeFloorPrecision(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	// 29/100 trips naive float math: 0.29*100 = 28.999... floors to 28.
	for _, lesson := range f.lessons[:29] {
		require.NoError(t, f.db.Create(&courseModels.ProgressEvent{
			UserID:      f.student.ID,
			CourseID:    f.course.ID,
			LessonID:    lesson.ID,
			CompletedAt: time.Now(),
		}).Error)
	}

	updated, err := f.aggregator.Recompute(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 29.0, updated.Percentage)
	require.Equal(t, 29, updated.CompletedLessons)
	require.Equal(t, 100, updated.TotalLessons)
}

func TestRecomputeConflictCarriesRetryCause(t *testing.T) {
	f := newFixture(t, 1)

	// Force every query inside the recompute transaction to fail with a
	// retryable error so the bounded retries exhaust.
	require.NoError(t, f.db.Callback().Query().Before("gorm:query").
		Register("force_deadlock", func(tx *gorm.DB) {
			tx.AddError(errors.New("deadlock detected"))
		}))

	_, err := f.aggregator.Recompute(context.Background(), f.student.ID, f.course.ID)
	require.ErrorIs(t, err, ErrConcurrencyConflict)
	require.Contains(t, err.Error(), "deadlock detected")
}

func TestRecordCompletionConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, 2)

	// sqlite permits one writer; serialize at the pool so racing callers
	// interleave between the duplicate pre-check and the insert.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	const callers = 6

	var fresh int32
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[0].ID, time.Now())
			if err != nil {
				errs <- err
				return
			}
			if !result.Duplicate {
				atomic.AddInt32(&fresh, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), fresh)

	var events int64
	require.NoError(t, f.db.Model(&courseModels.ProgressEvent{}).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestRecomputeZeroLessonCourse(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	updated, err := f.aggregator.Recompute(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, updated.Percentage)
	require.Equal(t, courseModels.StatusEnrolled, updated.Status)
	require.False(t, updated.TransitionedToCompleted)
}

func TestRecomputeEnrollmentNotFound(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.aggregator.Recompute(context.Background(), f.student.ID+100, f.course.ID)
	require.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestRecomputeCourseCoversAllEnrollments(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	second := models.User{Name: "Second", Email: "second@example.com", Password: "x"}
	require.NoError(t, f.db.Create(&second).Error)
	require.NoError(t, f.db.Create(&courseModels.Enrollment{
		UserID: second.ID, CourseID: f.course.ID, Status: courseModels.StatusEnrolled, TotalLessons: 2,
	}).Error)

	for _, userID := range []uint{f.student.ID, second.ID} {
		_, err := f.ledger.RecordCompletion(ctx, userID, f.course.ID, f.lessons[0].ID, time.Now())
		require.NoError(t, err)
	}

	require.NoError(t, f.db.Model(&courseModels.Lesson{}).
		Where("id = ?", f.lessons[1].ID).
		Update("is_deleted", true).Error)
	require.NoError(t, f.aggregator.RecomputeCourse(ctx, f.course.ID))

	var enrollments []courseModels.Enrollment
	require.NoError(t, f.db.Where("course_id = ?", f.course.ID).Find(&enrollments).Error)
	require.Len(t, enrollments, 2)
	for _, enrollment := range enrollments {
		require.Equal(t, 100.0, enrollment.Progress)
	}
}

func TestCertificateHookFires(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	issued := make(chan courseModels.Certificate, 1)
	f.ledger.OnCertificateIssued(func(certificate courseModels.Certificate) {
		issued <- certificate
	})

	result, err := f.ledger.RecordCompletion(ctx, f.student.ID, f.course.ID, f.lessons[0].ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)

	select {
	case certificate := <-issued:
		require.Equal(t, result.Certificate.CertificateCode, certificate.CertificateCode)
	case <-time.After(2 * time.Second):
		t.Fatal("certificate hook did not fire")
	}
}
