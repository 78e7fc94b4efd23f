package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat is returned for formats other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Export renders a metric as bytes plus its content type. Output is
// deterministic: CSV columns have a fixed order and monetary/percentage
// fields are formatted to two decimals, so unchanged data exports
// byte-identically. Exports always compute live data.
func (r *Rollup) Export(ctx context.Context, metricType, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		return r.exportJSON(ctx, metricType)
	case FormatCSV:
		return r.exportCSV(ctx, metricType)
	default:
		return nil, "", ErrUnsupportedFormat
	}
}

func (r *Rollup) exportJSON(ctx context.Context, metricType string) ([]byte, string, error) {
	result, err := r.computeFresh(ctx, MetricRequest{Type: metricType})
	if err != nil {
		return nil, "", err
	}
	payload, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return payload, "application/json", nil
}

func (r *Rollup) exportCSV(ctx context.Context, metricType string) ([]byte, string, error) {
	var records [][]string

	switch metricType {
	case MetricUserGrowth:
		points, err := r.UserGrowth(ctx, defaultGrowthDays)
		if err != nil {
			return nil, "", err
		}
		records = append(records, []string{"date", "new_users", "total_users"})
		for _, p := range points {
			records = append(records, []string{
				p.Date,
				strconv.FormatInt(p.NewUsers, 10),
				strconv.FormatInt(p.TotalUsers, 10),
			})
		}

	case MetricCoursePerformance:
		rows, err := r.CoursePerformance(ctx, 0)
		if err != nil {
			return nil, "", err
		}
		records = append(records, []string{
			"course_id", "title", "enrollments", "completed",
			"completion_rate", "avg_progress", "avg_rating", "revenue",
		})
		for _, row := range rows {
			records = append(records, []string{
				strconv.FormatUint(uint64(row.CourseID), 10),
				row.Title,
				strconv.FormatInt(row.Enrollments, 10),
				strconv.FormatInt(row.Completed, 10),
				fmt.Sprintf("%.2f", row.CompletionRate),
				fmt.Sprintf("%.2f", row.AvgProgress),
				fmt.Sprintf("%.2f", row.AvgRating),
				fmt.Sprintf("%.2f", row.Revenue),
			})
		}

	case MetricPlatformOverview:
		stats, err := r.Overview(ctx)
		if err != nil {
			return nil, "", err
		}
		records = append(records, []string{
			"total_users", "total_courses", "published_courses", "total_enrollments",
			"completed_enrollments", "certificates_issued", "total_revenue",
		})
		records = append(records, []string{
			strconv.FormatInt(stats.TotalUsers, 10),
			strconv.FormatInt(stats.TotalCourses, 10),
			strconv.FormatInt(stats.PublishedCourses, 10),
			strconv.FormatInt(stats.TotalEnrollments, 10),
			strconv.FormatInt(stats.CompletedEnrollments, 10),
			strconv.FormatInt(stats.CertificatesIssued, 10),
			fmt.Sprintf("%.2f", stats.TotalRevenue),
		})

	default:
		return nil, "", ErrUnknownMetric
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "text/csv", nil
}
