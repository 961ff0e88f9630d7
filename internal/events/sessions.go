package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// upsertActiveSession inserts or refreshes the liveness row for a session.
// Runs inside the same transaction as the visit insert so the event write and
// the liveness update commit or roll back together.
func upsertActiveSession(tx *gorm.DB, sessionID, pageURL string, now time.Time) error {
	query := `
		INSERT INTO active_sessions (session_id, last_seen, page_url)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			last_seen = ?,
			page_url = ?
	`
	return tx.Exec(query, sessionID, now, pageURL, now, pageURL).Error
}

// PurgeExpiredSessions deletes ActiveSession rows whose last_seen is older
// than the timeout. Returns the number of rows removed.
func PurgeExpiredSessions(dbManager cartridge.DBManager, logger *slog.Logger, timeout time.Duration) (int64, error) {
	db := dbManager.GetConnection()
	cutoff := time.Now().UTC().Add(-timeout)

	var purged int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Where("last_seen < ?", cutoff).Delete(&ActiveSession{})
		purged = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	if purged > 0 {
		logger.Debug("Purged expired sessions",
			slog.Int64("count", purged),
			slog.Time("cutoff", cutoff))
	}
	return purged, nil
}

// CountActiveSessions counts sessions seen within the query window. The
// window is configured independently from the purge timeout.
func CountActiveSessions(db *gorm.DB, window time.Duration) (int64, error) {
	since := time.Now().UTC().Add(-window)

	var count int64
	err := db.Model(&ActiveSession{}).
		Where("last_seen >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}
