package analytics

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"lms/database"
	"lms/models"
	courseModels "lms/models/course"

	"github.com/jinzhu/now"
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

func newRollup(db *gorm.DB) *Rollup {
	return NewRollup(db, 5*time.Second, NewSnapshotStore(db, 15*time.Minute))
}

// seedCourseData creates one instructor-owned course with four enrollments:
// two completed paid at 49.99, one halfway, one untouched, plus two reviews.
func seedCourseData(t *testing.T, db *gorm.DB) courseModels.Course {
	t.Helper()

	instructor := models.User{Name: "Instructor", Email: "instructor@example.com", Role: "INSTRUCTOR", Password: "x"}
	require.NoError(t, db.Create(&instructor).Error)

	course := courseModels.Course{
		InstructorID: instructor.ID,
		Title:        "Go Fundamentals",
		Status:       "PUBLISHED",
		Price:        49.99,
		TotalLessons: 4,
	}
	require.NoError(t, db.Create(&course).Error)

	completedAt := time.Now()
	rows := []courseModels.Enrollment{
		{Status: courseModels.StatusCompleted, Progress: 100, PaymentStatus: courseModels.PaymentPaid, PaymentAmount: 49.99, CompletedAt: &completedAt},
		{Status: courseModels.StatusCompleted, Progress: 100, PaymentStatus: courseModels.PaymentPaid, PaymentAmount: 49.99, CompletedAt: &completedAt},
		{Status: courseModels.StatusInProgress, Progress: 50, PaymentStatus: courseModels.PaymentFree},
		{Status: courseModels.StatusEnrolled, Progress: 0, PaymentStatus: courseModels.PaymentFree},
	}
	for i, row := range rows {
		student := models.User{
			Name:     fmt.Sprintf("Student %d", i+1),
			Email:    fmt.Sprintf("student%d@example.com", i+1),
			Password: "x",
		}
		require.NoError(t, db.Create(&student).Error)

		row.UserID = student.ID
		row.CourseID = course.ID
		require.NoError(t, db.Create(&row).Error)

		if row.Status == courseModels.StatusCompleted {
			require.NoError(t, db.Create(&courseModels.Certificate{
				UserID:          student.ID,
				CourseID:        course.ID,
				CertificateCode: fmt.Sprintf("CERT-TEST%04d-%04d", i, i),
				IssuedAt:        completedAt,
			}).Error)
		}
	}

	for i, rating := range []int{4, 5} {
		require.NoError(t, db.Create(&courseModels.Review{
			UserID:   uint(i + 100),
			CourseID: course.ID,
			Rating:   rating,
		}).Error)
	}

	return course
}

func TestCoursePerformance(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourseData(t, db)
	rollup := newRollup(db)

	rows, err := rollup.CoursePerformance(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	require.Equal(t, course.ID, row.CourseID)
	require.Equal(t, "Go Fundamentals", row.Title)
	require.Equal(t, int64(4), row.Enrollments)
	require.Equal(t, int64(2), row.Completed)
	require.Equal(t, 50.0, row.CompletionRate)
	require.Equal(t, 62.5, row.AvgProgress)
	require.Equal(t, 4.5, row.AvgRating)
	require.Equal(t, 99.98, row.Revenue)
}

func TestCoursePerformanceInstructorScope(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourseData(t, db)
	rollup := newRollup(db)

	// A different instructor sees no rows.
	rows, err := rollup.CoursePerformance(context.Background(), course.InstructorID+100)
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = rollup.CoursePerformance(context.Background(), course.InstructorID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestOverview(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourseData(t, db)
	rollup := newRollup(db)

	// Refunded enrollments drop out of totals and revenue.
	refundedUser := models.User{Name: "Refunded", Email: "refunded@example.com", Password: "x"}
	require.NoError(t, db.Create(&refundedUser).Error)
	require.NoError(t, db.Create(&courseModels.Enrollment{
		UserID:        refundedUser.ID,
		CourseID:      course.ID,
		Status:        courseModels.StatusRefunded,
		PaymentStatus: courseModels.PaymentRefunded,
		PaymentAmount: 49.99,
	}).Error)

	stats, err := rollup.Overview(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6), stats.TotalUsers) // instructor + 4 students + refunded
	require.Equal(t, int64(1), stats.TotalCourses)
	require.Equal(t, int64(1), stats.PublishedCourses)
	require.Equal(t, int64(4), stats.TotalEnrollments)
	require.Equal(t, int64(2), stats.CompletedEnrollments)
	require.Equal(t, int64(2), stats.CertificatesIssued)
	require.Equal(t, 99.98, stats.TotalRevenue)
}

func TestUserGrowthCumulative(t *testing.T) {
	db := setupTestDB(t)
	rollup := newRollup(db)

	today := now.BeginningOfDay()
	seed := []struct {
		email     string
		createdAt time.Time
	}{
		{"old@example.com", today.AddDate(0, 0, -10)},
		{"a@example.com", today.AddDate(0, 0, -1)},
		{"b@example.com", today.AddDate(0, 0, -1)},
		{"c@example.com", today.Add(2 * time.Hour)},
	}
	for _, s := range seed {
		user := models.User{Name: "U", Email: s.email, Password: "x"}
		user.CreatedAt = s.createdAt
		require.NoError(t, db.Create(&user).Error)
	}

	points, err := rollup.UserGrowth(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, points, 5)

	// The user outside the window seeds the running total.
	require.Equal(t, int64(1), points[0].TotalUsers)
	require.Equal(t, int64(2), points[3].NewUsers)
	require.Equal(t, int64(1), points[4].NewUsers)
	require.Equal(t, int64(4), points[4].TotalUsers)
	require.Equal(t, today.Format("2006-01-02"), points[4].Date)
}

func TestStudentDashboard(t *testing.T) {
	db := setupTestDB(t)
	course := seedCourseData(t, db)
	rollup := newRollup(db)

	var enrollment courseModels.Enrollment
	require.NoError(t, db.Where("status = ?", courseModels.StatusCompleted).
		Order("id asc").First(&enrollment).Error)

	// A second enrollment so the dashboard resolves titles for several courses
	second := courseModels.Course{
		InstructorID: course.InstructorID,
		Title:        "Advanced Go",
		Status:       "PUBLISHED",
	}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&courseModels.Enrollment{
		UserID:   enrollment.UserID,
		CourseID: second.ID,
		Status:   courseModels.StatusInProgress,
		Progress: 40,
	}).Error)

	dashboard, err := rollup.StudentDashboard(context.Background(), enrollment.UserID)
	require.NoError(t, err)
	require.Equal(t, int64(2), dashboard.Enrolled)
	require.Equal(t, int64(1), dashboard.Completed)
	require.Equal(t, int64(1), dashboard.InProgress)
	require.Equal(t, int64(1), dashboard.Certificates)
	require.Equal(t, 70.0, dashboard.AvgProgress)
	require.Len(t, dashboard.Courses, 2)
	require.Equal(t, course.ID, dashboard.Courses[0].CourseID)
	require.Equal(t, "Go Fundamentals", dashboard.Courses[0].Title)
	require.NotNil(t, dashboard.Courses[0].CompletedAt)
	require.Equal(t, second.ID, dashboard.Courses[1].CourseID)
	require.Equal(t, "Advanced Go", dashboard.Courses[1].Title)
}

func TestComputeMetricCaching(t *testing.T) {
	db := setupTestDB(t)
	seedCourseData(t, db)
	rollup := newRollup(db)
	ctx := context.Background()

	req := MetricRequest{Type: MetricPlatformOverview, AllowCached: true}

	first, err := rollup.ComputeMetric(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := rollup.ComputeMetric(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.False(t, second.Stale)
	require.WithinDuration(t, first.ComputedAt, second.ComputedAt, time.Second)
}

func TestSnapshotFreshness(t *testing.T) {
	db := setupTestDB(t)
	store := NewSnapshotStore(db, 15*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, MetricPlatformOverview, "", "", map[string]int{"total": 1}, time.Now().Add(-time.Hour)))

	snapshot, err := store.Load(ctx, MetricPlatformOverview, "", "")
	require.NoError(t, err)
	require.False(t, store.Fresh(snapshot))

	// Upsert replaces the stale value under the same key.
	require.NoError(t, store.Save(ctx, MetricPlatformOverview, "", "", map[string]int{"total": 2}, time.Now()))

	snapshot, err = store.Load(ctx, MetricPlatformOverview, "", "")
	require.NoError(t, err)
	require.True(t, store.Fresh(snapshot))

	var count int64
	require.NoError(t, db.Model(&models.AnalyticsSnapshot{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestComputeMetricUnknownType(t *testing.T) {
	db := setupTestDB(t)
	rollup := newRollup(db)

	_, err := rollup.ComputeMetric(context.Background(), MetricRequest{Type: "bogus"})
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRefreshStoresGlobalSnapshots(t *testing.T) {
	db := setupTestDB(t)
	seedCourseData(t, db)
	rollup := newRollup(db)

	require.NoError(t, rollup.Refresh(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.AnalyticsSnapshot{}).Count(&count).Error)
	require.Equal(t, int64(3), count)
}
