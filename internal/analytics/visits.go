package analytics

import (
	"fmt"

	"gorm.io/gorm"
)

// VisitsCount returns the number of page visits in the range.
func VisitsCount(db *gorm.DB, params QueryParams) (int64, error) {
	clause, args := rangeClause(params)

	var count int64
	err := db.Raw(`SELECT COUNT(*) FROM page_visits WHERE 1=1`+clause, args...).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting visits: %w", err)
	}
	return count, nil
}

// UniqueSessionsCount returns the number of distinct sessions that produced a
// visit in the range.
func UniqueSessionsCount(db *gorm.DB, params QueryParams) (int64, error) {
	clause, args := rangeClause(params)

	var count int64
	err := db.Raw(`SELECT COUNT(DISTINCT session_id) FROM page_visits WHERE 1=1`+clause, args...).
		Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting unique sessions: %w", err)
	}
	return count, nil
}

// VisitsByDay returns a per-day visit count series, most recent day first.
// Days with no visits are absent from the result.
func VisitsByDay(db *gorm.DB, params QueryParams) ([]DateStat, error) {
	clause, args := rangeClause(params)

	query := `
		SELECT
			strftime('%Y-%m-%d', created_at) AS date,
			COUNT(*) AS count
		FROM page_visits
		WHERE 1=1` + clause + `
		GROUP BY date
		ORDER BY date DESC
	`

	var results []DateStat
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching visits by day: %w", err)
	}
	return results, nil
}

// TopPages returns the most visited page URLs in the range.
func TopPages(db *gorm.DB, params QueryParams) ([]MetricCountResult, error) {
	clause, args := rangeClause(params)
	args = append(args, params.EffectiveLimit())

	query := `
		SELECT page_url AS name, COUNT(*) AS count
		FROM page_visits
		WHERE 1=1` + clause + `
		GROUP BY page_url
		ORDER BY count DESC, name ASC
		LIMIT ?
	`

	var results []MetricCountResult
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching top pages: %w", err)
	}
	return results, nil
}
