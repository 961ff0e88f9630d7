package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// FunnelStep is one named conversion step. Steps are ordered by the earliest
// position the event holds within any session, so the funnel reads in the
// order visitors actually reach the steps.
type FunnelStep struct {
	EventName string `json:"event_name"`
	Sessions  int64  `json:"sessions"`
	MinOrder  int    `json:"min_order"`
}

// ConversionFunnel returns distinct-session counts per conversion event,
// ordered by MIN(event_order) ascending.
func ConversionFunnel(db *gorm.DB, params QueryParams) ([]FunnelStep, error) {
	clause, args := rangeClause(params)

	query := `
		SELECT
			event_name,
			COUNT(DISTINCT session_id) AS sessions,
			MIN(event_order) AS min_order
		FROM conversion_events
		WHERE 1=1` + clause + `
		GROUP BY event_name
		ORDER BY min_order ASC, event_name ASC
	`

	var results []FunnelStep
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching conversion funnel: %w", err)
	}
	return results, nil
}

// ConversionsCount returns the total number of conversion events in the range.
func ConversionsCount(db *gorm.DB, params QueryParams) (int64, error) {
	clause, args := rangeClause(params)

	var count int64
	err := db.Raw(`SELECT COUNT(*) FROM conversion_events WHERE 1=1`+clause, args...).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting conversions: %w", err)
	}
	return count, nil
}

// ConvertedSessionsCount returns how many distinct sessions recorded at least
// one conversion event in the range.
func ConvertedSessionsCount(db *gorm.DB, params QueryParams) (int64, error) {
	clause, args := rangeClause(params)

	var count int64
	err := db.Raw(`SELECT COUNT(DISTINCT session_id) FROM conversion_events WHERE 1=1`+clause, args...).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting converted sessions: %w", err)
	}
	return count, nil
}
