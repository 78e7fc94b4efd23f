package utils

import (
	"context"
	"lms/config"
	"lms/services/analytics"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// InitializeAnalyticsScheduler sets up the periodic snapshot refresh
func InitializeAnalyticsScheduler(rollup *analytics.Rollup) {
	log.Println("[ANALYTICS-SCHEDULER] Initializing snapshot refresh scheduler...")

	c := cron.New()

	spec := config.AppConfig.AnalyticsRefreshCron
	_, err := c.AddFunc(spec, func() {
		RefreshAnalyticsSnapshots(rollup)
	})
	if err != nil {
		log.Printf("[ANALYTICS-SCHEDULER] Invalid cron expression %q: %v", spec, err)
		return
	}

	c.Start()
	log.Printf("[ANALYTICS-SCHEDULER] Snapshot refresh scheduler started (%s)", spec)
}

// RefreshAnalyticsSnapshots recomputes and stores the global metric snapshots
func RefreshAnalyticsSnapshots(rollup *analytics.Rollup) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	started := time.Now()
	if err := rollup.Refresh(ctx); err != nil {
		log.Printf("[ANALYTICS-SCHEDULER] Snapshot refresh failed: %v", err)
		return
	}
	log.Printf("[ANALYTICS-SCHEDULER] Snapshots refreshed in %s", time.Since(started))
}
