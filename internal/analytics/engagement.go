package analytics

import (
	"fmt"
	"math"

	"gorm.io/gorm"
)

// PageTimeStat is the average dwell time for one page. Only visits with a
// positive recorded dwell time contribute; open visits have none yet.
type PageTimeStat struct {
	PageURL        string  `json:"page_url"`
	AverageSeconds float64 `json:"average_seconds"`
	Samples        int64   `json:"samples"`
}

// AverageTimeOnPage returns per-page average dwell time in seconds, ordered
// by average descending.
func AverageTimeOnPage(db *gorm.DB, params QueryParams) ([]PageTimeStat, error) {
	clause, args := rangeClause(params)
	args = append(args, params.EffectiveLimit())

	query := `
		SELECT
			page_url,
			AVG(time_on_page) AS average_seconds,
			COUNT(*) AS samples
		FROM page_visits
		WHERE time_on_page IS NOT NULL AND time_on_page > 0` + clause + `
		GROUP BY page_url
		ORDER BY average_seconds DESC, page_url ASC
		LIMIT ?
	`

	var results []PageTimeStat
	if err := db.Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("error fetching time on page: %w", err)
	}

	for i := range results {
		results[i].AverageSeconds = math.Round(results[i].AverageSeconds*100) / 100
	}
	return results, nil
}

// OverallAverageTimeOnPage returns the mean dwell time in seconds across all
// qualifying visits, or 0 when none has a recorded dwell time.
func OverallAverageTimeOnPage(db *gorm.DB, params QueryParams) (float64, error) {
	clause, args := rangeClause(params)

	query := `
		SELECT COALESCE(AVG(time_on_page), 0)
		FROM page_visits
		WHERE time_on_page IS NOT NULL AND time_on_page > 0` + clause

	var average float64
	if err := db.Raw(query, args...).Scan(&average).Error; err != nil {
		return 0, fmt.Errorf("error fetching overall time on page: %w", err)
	}
	return math.Round(average*100) / 100, nil
}
