package analytics

import (
	"log/slog"
	"math"
	"time"

	"github.com/karloscodes/cartridge"

	"fintrack/internal/config"
	"fintrack/internal/events"
)

// Summary is the dashboard headline block: trailing 24-hour and 7-day
// visit/click counts, the live user count, and a derived conversion rate.
type Summary struct {
	VisitsLast24h  int64   `json:"visits_last_24h"`
	VisitsLast7d   int64   `json:"visits_last_7d"`
	ClicksLast24h  int64   `json:"clicks_last_24h"`
	ClicksLast7d   int64   `json:"clicks_last_7d"`
	ActiveUsers    int64   `json:"active_users"`
	ConversionRate float64 `json:"conversion_rate"`
}

// SummaryStats computes the headline numbers. Expired liveness rows are swept
// first so ActiveUsers never counts sessions past the timeout; a failed sweep
// degrades to a stale count rather than failing the query.
func SummaryStats(dbManager cartridge.DBManager, logger *slog.Logger) (*Summary, error) {
	cfg := config.GetConfig()

	if _, err := events.PurgeExpiredSessions(dbManager, logger, cfg.ActiveSessionTimeout()); err != nil {
		logger.Warn("Failed to sweep expired sessions before summary", slog.Any("error", err))
	}

	db := dbManager.GetConnection()
	now := time.Now().UTC()
	last24h := QueryParams{From: now.Add(-24 * time.Hour)}
	last7d := QueryParams{From: now.AddDate(0, 0, -7)}

	visits24h, err := VisitsCount(db, last24h)
	if err != nil {
		return nil, err
	}
	visits7d, err := VisitsCount(db, last7d)
	if err != nil {
		return nil, err
	}
	clicks24h, err := ClicksCount(db, last24h)
	if err != nil {
		return nil, err
	}
	clicks7d, err := ClicksCount(db, last7d)
	if err != nil {
		return nil, err
	}
	active, err := events.CountActiveSessions(db, cfg.ActiveUsersWindow())
	if err != nil {
		return nil, err
	}

	return &Summary{
		VisitsLast24h:  visits24h,
		VisitsLast7d:   visits7d,
		ClicksLast24h:  clicks24h,
		ClicksLast7d:   clicks7d,
		ActiveUsers:    active,
		ConversionRate: conversionRate(clicks24h, visits24h),
	}, nil
}

// conversionRate is clicks as a share of visits over the last 24 hours, as a
// percentage rounded to two decimals. Zero visits yields zero, not NaN.
func conversionRate(clicks, visits int64) float64 {
	if visits == 0 {
		return 0
	}
	rate := float64(clicks) / float64(visits) * 100
	return math.Round(rate*100) / 100
}
