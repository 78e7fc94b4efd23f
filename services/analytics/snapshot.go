package analytics

import (
	"context"
	"encoding/json"
	"time"

	"lms/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotStore persists precomputed metrics keyed by (metric_type, dimension,
// period). Snapshots are non-authoritative: always recomputable from the
// source tables, safe to drop and rebuild.
type SnapshotStore struct {
	db           *gorm.DB
	maxStaleness time.Duration
}

func NewSnapshotStore(db *gorm.DB, maxStaleness time.Duration) *SnapshotStore {
	return &SnapshotStore{db: db, maxStaleness: maxStaleness}
}

// Load fetches a snapshot; returns gorm.ErrRecordNotFound when none exists.
func (s *SnapshotStore) Load(ctx context.Context, metricType, dimension, period string) (*models.AnalyticsSnapshot, error) {
	var snapshot models.AnalyticsSnapshot
	err := s.db.WithContext(ctx).
		Where("metric_type = ? AND dimension = ? AND period = ?", metricType, dimension, period).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Fresh reports whether a snapshot is within the configured max staleness.
func (s *SnapshotStore) Fresh(snapshot *models.AnalyticsSnapshot) bool {
	if s.maxStaleness <= 0 {
		return true
	}
	return time.Since(snapshot.ComputedAt) <= s.maxStaleness
}

// Save upserts a snapshot under its (metric_type, dimension, period) key.
func (s *SnapshotStore) Save(ctx context.Context, metricType, dimension, period string, data interface{}, computedAt time.Time) error {
	value, err := json.Marshal(data)
	if err != nil {
		return err
	}

	snapshot := models.AnalyticsSnapshot{
		MetricType: metricType,
		Dimension:  dimension,
		Period:     period,
		Value:      value,
		ComputedAt: computedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "metric_type"}, {Name: "dimension"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "computed_at", "updated_at"}),
	}).Create(&snapshot).Error
}
