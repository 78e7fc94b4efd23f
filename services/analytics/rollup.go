package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"lms/models"
	courseModels "lms/models/course"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// Metric types served by the rollup
const (
	MetricUserGrowth        = "user_growth"
	MetricCoursePerformance = "course_performance"
	MetricPlatformOverview  = "platform_overview"
	MetricStudentDashboard  = "student_dashboard"
)

// ErrUnknownMetric is returned for a metric type the rollup does not serve.
var ErrUnknownMetric = errors.New("unknown metric type")

const defaultGrowthDays = 30

// Rollup aggregates ledger, enrollment and payment data into dashboard
// metrics. Pure read side: it never mutates enrollments or the ledger, and it
// runs concurrently with writes under normal transactional read consistency.
type Rollup struct {
	db        *gorm.DB
	timeout   time.Duration
	snapshots *SnapshotStore
}

func NewRollup(db *gorm.DB, timeout time.Duration, snapshots *SnapshotStore) *Rollup {
	return &Rollup{db: db, timeout: timeout, snapshots: snapshots}
}

// MetricRequest selects a metric family, an optional scope dimension
// (instructor or student id) and a period such as "30d".
type MetricRequest struct {
	Type        string `json:"type"`
	Dimension   string `json:"dimension"`
	Period      string `json:"period"`
	AllowCached bool   `json:"allow_cached"`
}

// MetricResult carries the metric payload plus its staleness indicator.
// ComputedAt always reflects when the data was actually computed, so callers
// can distinguish live from cached results.
type MetricResult struct {
	Type       string      `json:"type"`
	Dimension  string      `json:"dimension,omitempty"`
	Period     string      `json:"period,omitempty"`
	ComputedAt time.Time   `json:"computed_at"`
	Cached     bool        `json:"cached"`
	Stale      bool        `json:"stale"`
	Data       interface{} `json:"data"`
}

// GrowthPoint is one day of the cumulative user-growth series.
type GrowthPoint struct {
	Date       string `json:"date"`
	NewUsers   int64  `json:"new_users"`
	TotalUsers int64  `json:"total_users"`
}

// CoursePerformance aggregates one course's enrollment and revenue figures.
type CoursePerformance struct {
	CourseID       uint    `json:"course_id"`
	Title          string  `json:"title"`
	Enrollments    int64   `json:"enrollments"`
	Completed      int64   `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	AvgProgress    float64 `json:"avg_progress"`
	AvgRating      float64 `json:"avg_rating"`
	Revenue        float64 `json:"revenue"`
}

// OverviewStats are the platform-wide dashboard counters.
type OverviewStats struct {
	TotalUsers           int64   `json:"total_users"`
	TotalCourses         int64   `json:"total_courses"`
	PublishedCourses     int64   `json:"published_courses"`
	TotalEnrollments     int64   `json:"total_enrollments"`
	CompletedEnrollments int64   `json:"completed_enrollments"`
	CertificatesIssued   int64   `json:"certificates_issued"`
	TotalRevenue         float64 `json:"total_revenue"`
}

// StudentCourseRow is one enrollment line on a student dashboard.
type StudentCourseRow struct {
	CourseID    uint       `json:"course_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Progress    float64    `json:"progress"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StudentDashboard is the enrollment-scoped personal dashboard.
type StudentDashboard struct {
	Enrolled     int64              `json:"enrolled"`
	InProgress   int64              `json:"in_progress"`
	Completed    int64              `json:"completed"`
	Certificates int64              `json:"certificates"`
	AvgProgress  float64            `json:"avg_progress"`
	Courses      []StudentCourseRow `json:"courses"`
}

// ComputeMetric serves a metric, preferring a fresh snapshot when the request
// allows cached data. A snapshot past the staleness threshold is recomputed;
// if the recompute fails while a stale snapshot exists, the snapshot is served
// with Stale set rather than failing the dashboard.
func (r *Rollup) ComputeMetric(ctx context.Context, req MetricRequest) (*MetricResult, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if req.AllowCached && r.snapshots != nil {
		if snapshot, err := r.snapshots.Load(ctx, req.Type, req.Dimension, req.Period); err == nil {
			if r.snapshots.Fresh(snapshot) {
				return cachedResult(req, snapshot, false), nil
			}
			fresh, computeErr := r.computeFresh(ctx, req)
			if computeErr != nil {
				return cachedResult(req, snapshot, true), nil
			}
			return fresh, nil
		}
	}

	return r.computeFresh(ctx, req)
}

func (r *Rollup) computeFresh(ctx context.Context, req MetricRequest) (*MetricResult, error) {
	var (
		data interface{}
		err  error
	)

	switch req.Type {
	case MetricUserGrowth:
		data, err = r.UserGrowth(ctx, parsePeriodDays(req.Period))
	case MetricCoursePerformance:
		data, err = r.CoursePerformance(ctx, parseDimensionID(req.Dimension))
	case MetricPlatformOverview:
		data, err = r.Overview(ctx)
	case MetricStudentDashboard:
		data, err = r.StudentDashboard(ctx, parseDimensionID(req.Dimension))
	default:
		return nil, ErrUnknownMetric
	}
	if err != nil {
		return nil, err
	}

	computedAt := time.Now()
	if r.snapshots != nil {
		if saveErr := r.snapshots.Save(ctx, req.Type, req.Dimension, req.Period, data, computedAt); saveErr != nil {
			// A failed cache write never fails the read path.
			_ = saveErr
		}
	}

	return &MetricResult{
		Type:       req.Type,
		Dimension:  req.Dimension,
		Period:     req.Period,
		ComputedAt: computedAt,
		Data:       data,
	}, nil
}

// Refresh recomputes and stores the global snapshots. Driven by the cron
// scheduler and the on-demand admin endpoint.
func (r *Rollup) Refresh(ctx context.Context) error {
	requests := []MetricRequest{
		{Type: MetricUserGrowth, Period: fmt.Sprintf("%dd", defaultGrowthDays)},
		{Type: MetricCoursePerformance},
		{Type: MetricPlatformOverview},
	}
	for _, req := range requests {
		if _, err := r.computeFresh(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// UserGrowth returns the cumulative user count by day over a trailing window.
func (r *Rollup) UserGrowth(ctx context.Context, days int) ([]GrowthPoint, error) {
	if days <= 0 {
		days = defaultGrowthDays
	}

	today := now.BeginningOfDay()
	windowStart := today.AddDate(0, 0, -(days - 1))

	db := r.db.WithContext(ctx)

	var base int64
	if err := db.Model(&models.User{}).
		Where("is_deleted = ? AND created_at < ?", false, windowStart).
		Count(&base).Error; err != nil {
		return nil, err
	}

	var createdAts []time.Time
	if err := db.Model(&models.User{}).
		Where("is_deleted = ? AND created_at >= ?", false, windowStart).
		Order("created_at asc").
		Pluck("created_at", &createdAts).Error; err != nil {
		return nil, err
	}

	perDay := make(map[string]int64, days)
	for _, createdAt := range createdAts {
		perDay[now.New(createdAt).BeginningOfDay().Format("2006-01-02")]++
	}

	points := make([]GrowthPoint, 0, days)
	running := base
	for day := windowStart; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		running += perDay[key]
		points = append(points, GrowthPoint{
			Date:       key,
			NewUsers:   perDay[key],
			TotalUsers: running,
		})
	}
	return points, nil
}

// CoursePerformance aggregates enrollment count, average progress, average
// rating and paid revenue per course. instructorID scopes to one instructor's
// courses; zero means all courses. Ordered by course id for stable output.
func (r *Rollup) CoursePerformance(ctx context.Context, instructorID uint) ([]CoursePerformance, error) {
	db := r.db.WithContext(ctx)

	query := db.Where("is_deleted = ?", false)
	if instructorID > 0 {
		query = query.Where("instructor_id = ?", instructorID)
	}

	var courses []courseModels.Course
	if err := query.Order("id asc").Find(&courses).Error; err != nil {
		return nil, err
	}

	result := make([]CoursePerformance, 0, len(courses))
	for _, c := range courses {
		var agg struct {
			Enrollments int64
			Completed   int64
			AvgProgress float64
			Revenue     float64
		}
		if err := db.Model(&courseModels.Enrollment{}).
			Select(
				"COUNT(*) AS enrollments, "+
					"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed, "+
					"COALESCE(AVG(progress), 0) AS avg_progress, "+
					"COALESCE(SUM(CASE WHEN payment_status = ? THEN payment_amount ELSE 0 END), 0) AS revenue",
				courseModels.StatusCompleted, courseModels.PaymentPaid).
			Where("course_id = ?", c.ID).
			Scan(&agg).Error; err != nil {
			return nil, err
		}

		var avgRating float64
		if err := db.Model(&courseModels.Review{}).
			Select("COALESCE(AVG(rating), 0)").
			Where("course_id = ? AND is_deleted = ?", c.ID, false).
			Scan(&avgRating).Error; err != nil {
			return nil, err
		}

		completionRate := 0.0
		if agg.Enrollments > 0 {
			completionRate = float64(agg.Completed) / float64(agg.Enrollments) * 100
		}

		result = append(result, CoursePerformance{
			CourseID:       c.ID,
			Title:          c.Title,
			Enrollments:    agg.Enrollments,
			Completed:      agg.Completed,
			CompletionRate: round2(completionRate),
			AvgProgress:    round2(agg.AvgProgress),
			AvgRating:      round2(avgRating),
			Revenue:        round2(agg.Revenue),
		})
	}
	return result, nil
}

// Overview returns the platform-wide dashboard counters.
func (r *Rollup) Overview(ctx context.Context) (*OverviewStats, error) {
	db := r.db.WithContext(ctx)
	stats := &OverviewStats{}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&models.User{}).Where("is_deleted = ?", false)},
		{&stats.TotalCourses, db.Model(&courseModels.Course{}).Where("is_deleted = ?", false)},
		{&stats.PublishedCourses, db.Model(&courseModels.Course{}).Where("is_deleted = ? AND status = ?", false, "PUBLISHED")},
		{&stats.TotalEnrollments, db.Model(&courseModels.Enrollment{}).Where("status <> ?", courseModels.StatusRefunded)},
		{&stats.CompletedEnrollments, db.Model(&courseModels.Enrollment{}).Where("status = ?", courseModels.StatusCompleted)},
		{&stats.CertificatesIssued, db.Model(&courseModels.Certificate{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	if err := db.Model(&courseModels.Enrollment{}).
		Select("COALESCE(SUM(payment_amount), 0)").
		Where("payment_status = ?", courseModels.PaymentPaid).
		Scan(&stats.TotalRevenue).Error; err != nil {
		return nil, err
	}
	stats.TotalRevenue = round2(stats.TotalRevenue)

	return stats, nil
}

// StudentDashboard returns the enrollment-scoped view for one student.
func (r *Rollup) StudentDashboard(ctx context.Context, userID uint) (*StudentDashboard, error) {
	db := r.db.WithContext(ctx)

	var enrollments []courseModels.Enrollment
	if err := db.Where("user_id = ? AND status <> ?", userID, courseModels.StatusRefunded).
		Order("id asc").Find(&enrollments).Error; err != nil {
		return nil, err
	}

	courseIDs := make([]uint, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	titles, err := r.courseTitles(ctx, courseIDs)
	if err != nil {
		return nil, err
	}

	dashboard := &StudentDashboard{Courses: make([]StudentCourseRow, 0, len(enrollments))}
	progressSum := 0.0
	for _, e := range enrollments {
		dashboard.Enrolled++
		switch e.Status {
		case courseModels.StatusInProgress:
			dashboard.InProgress++
		case courseModels.StatusCompleted:
			dashboard.Completed++
		}
		progressSum += e.Progress

		dashboard.Courses = append(dashboard.Courses, StudentCourseRow{
			CourseID:    e.CourseID,
			Title:       titles[e.CourseID],
			Status:      e.Status,
			Progress:    e.Progress,
			CompletedAt: e.CompletedAt,
		})
	}
	if dashboard.Enrolled > 0 {
		dashboard.AvgProgress = round2(progressSum / float64(dashboard.Enrolled))
	}

	if err := db.Model(&courseModels.Certificate{}).
		Where("user_id = ?", userID).
		Count(&dashboard.Certificates).Error; err != nil {
		return nil, err
	}

	return dashboard, nil
}

// courseTitles loads id -> title for a set of courses in one query.
func (r *Rollup) courseTitles(ctx context.Context, courseIDs []uint) (map[uint]string, error) {
	titles := make(map[uint]string, len(courseIDs))
	if len(courseIDs) == 0 {
		return titles, nil
	}

	var courses []courseModels.Course
	if err := r.db.WithContext(ctx).Select("id, title").
		Where("id IN ?", courseIDs).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, c := range courses {
		titles[c.ID] = c.Title
	}
	return titles, nil
}

func cachedResult(req MetricRequest, snapshot *models.AnalyticsSnapshot, stale bool) *MetricResult {
	return &MetricResult{
		Type:       req.Type,
		Dimension:  req.Dimension,
		Period:     req.Period,
		ComputedAt: snapshot.ComputedAt,
		Cached:     true,
		Stale:      stale,
		Data:       json.RawMessage(snapshot.Value),
	}
}

// parsePeriodDays parses a "30d" style period, defaulting the trailing window.
func parsePeriodDays(period string) int {
	trimmed := strings.TrimSuffix(strings.TrimSpace(period), "d")
	if trimmed == "" {
		return defaultGrowthDays
	}
	days, err := strconv.Atoi(trimmed)
	if err != nil || days <= 0 {
		return defaultGrowthDays
	}
	return days
}

func parseDimensionID(dimension string) uint {
	id, err := strconv.ParseUint(dimension, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
