package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalyticsSnapshot caches a precomputed metric. Derived data only: every row
// can be dropped and rebuilt from the source tables.
type AnalyticsSnapshot struct {
	gorm.Model
	MetricType string         `json:"metric_type" gorm:"uniqueIndex:idx_snapshot_key;not null"`
	Dimension  string         `json:"dimension" gorm:"uniqueIndex:idx_snapshot_key;default:''"`
	Period     string         `json:"period" gorm:"uniqueIndex:idx_snapshot_key;default:''"`
	Value      datatypes.JSON `json:"value"`
	ComputedAt time.Time      `json:"computed_at"`
}
