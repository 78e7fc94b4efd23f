package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportCSVDeterministic(t *testing.T) {
	db := setupTestDB(t)
	seedCourseData(t, db)
	rollup := newRollup(db)
	ctx := context.Background()

	first, contentType, err := rollup.Export(ctx, MetricCoursePerformance, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "course_id,title,enrollments,completed,completion_rate,avg_progress,avg_rating,revenue", lines[0])
	require.Contains(t, lines[1], "Go Fundamentals,4,2,50.00,62.50,4.50,99.98")

	// Unchanged data exports byte-identically.
	second, _, err := rollup.Export(ctx, MetricCoursePerformance, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestExportOverviewCSV(t *testing.T) {
	db := setupTestDB(t)
	seedCourseData(t, db)
	rollup := newRollup(db)

	payload, _, err := rollup.Export(context.Background(), MetricPlatformOverview, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "5,1,1,4,2,2,99.98", lines[1])
}

func TestExportJSON(t *testing.T) {
	db := setupTestDB(t)
	seedCourseData(t, db)
	rollup := newRollup(db)

	payload, contentType, err := rollup.Export(context.Background(), MetricCoursePerformance, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, "application/json", contentType)

	var rows []CoursePerformance
	require.NoError(t, json.Unmarshal(payload, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, 99.98, rows[0].Revenue)
}

func TestExportErrors(t *testing.T) {
	db := setupTestDB(t)
	rollup := newRollup(db)
	ctx := context.Background()

	_, _, err := rollup.Export(ctx, MetricCoursePerformance, "xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, _, err = rollup.Export(ctx, "bogus", FormatCSV)
	require.ErrorIs(t, err, ErrUnknownMetric)

	_, _, err = rollup.Export(ctx, "bogus", FormatJSON)
	require.ErrorIs(t, err, ErrUnknownMetric)
}
