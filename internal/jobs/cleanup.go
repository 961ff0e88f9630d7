package jobs

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/events"
)

// CleanupJob enforces the data retention window across all raw event tables.
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run removes event rows older than the retention period. This keeps the
// GDPR data minimization promise and bounds storage growth.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.DataRetentionDays
	db := j.dbManager.GetConnection()
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting retention cleanup",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	tables := []struct {
		name  string
		model any
	}{
		{"page_visits", &events.PageVisit{}},
		{"click_events", &events.ClickEvent{}},
		{"click_heatmaps", &events.ClickHeatmap{}},
		{"conversion_events", &events.ConversionEvent{}},
		{"cookie_consents", &events.CookieConsent{}},
	}

	for _, table := range tables {
		deleted, err := j.deleteOldRows(db, table.model, cutoffDate)
		if err != nil {
			j.logger.Error("Failed to clean up table",
				slog.String("table", table.name),
				slog.Any("error", err))
			return err
		}
		if deleted > 0 {
			j.logger.Info("Cleaned up old rows",
				slog.String("table", table.name),
				slog.Int64("deleted_count", deleted))
		}
	}

	return nil
}

// deleteOldRows deletes in batches to avoid locking the database for too long.
func (j *CleanupJob) deleteOldRows(db *gorm.DB, model any, cutoff time.Time) (int64, error) {
	batchSize := 1000
	totalDeleted := int64(0)

	for {
		result := db.Where("created_at < ?", cutoff).
			Limit(batchSize).
			Delete(model)

		if result.Error != nil {
			return totalDeleted, result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	return totalDeleted, nil
}
